package appenv

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("appenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("appenv: %s must not be empty", name))
	}
}

// ManagerOption configures a Manager during construction via NewManager.
// Each With* function returns a ManagerOption that sets a specific field.
//
// Several With* functions panic on invalid input (empty paths, non-positive
// durations). These panics are intentional: option values are typically
// compile-time constants or package-level variables, so an invalid value
// indicates a programmer error rather than a runtime condition. The pattern
// mirrors [regexp.MustCompile]: fail fast during initialization instead of
// returning errors that would be universally fatal anyway.
type ManagerOption func(*managerConfig)

// WithBaseDataDir sets the directory holding the registry database, the
// per-slot lock files, and captured server output.
//
// The directory must be stable across test runs: reuse works by two runs
// looking into the same registry. Point different projects at different
// directories to keep their slot namespaces apart.
//
// Default: filepath.Join(os.TempDir(), DefaultBaseDataDirName).
//
// Panics if dir is empty.
func WithBaseDataDir(dir string) ManagerOption {
	requireNonEmpty("base data directory", dir)
	return func(c *managerConfig) {
		c.BaseDataDir = dir
	}
}

// WithStartupTimeout sets the maximum time allowed for a cold start, from
// spawning the server to the first fully passing health check. Servers can
// override it individually via ServerConfig.StartupTimeout.
//
// Default: 5 minutes.
//
// Panics if d <= 0.
func WithStartupTimeout(d time.Duration) ManagerOption {
	requirePositive("startup timeout", d)
	return func(c *managerConfig) {
		c.StartupTimeout = d
	}
}

// WithProbeInterval sets the delay between consecutive health polls while
// waiting for a starting server.
//
// Default: 250 milliseconds.
//
// Panics if d <= 0.
func WithProbeInterval(d time.Duration) ManagerOption {
	requirePositive("probe interval", d)
	return func(c *managerConfig) {
		c.ProbeInterval = d
	}
}

// WithReuseProbeTimeout sets the per-request timeout for the health probes
// that decide whether a recorded server is still usable. A warm server
// answers in milliseconds; one that cannot answer within this bound is
// treated as stale and replaced.
//
// Default: 2 seconds.
//
// Panics if d <= 0.
func WithReuseProbeTimeout(d time.Duration) ManagerOption {
	requirePositive("reuse probe timeout", d)
	return func(c *managerConfig) {
		c.ReuseProbeTimeout = d
	}
}

// WithLockTimeout sets the maximum time EnsureStarted waits for a slot's
// cross-process lock. The run holding the lock is normally cold-starting
// the same server, so this should cover a full startup. On expiry,
// EnsureStarted returns ErrSlotContended.
//
// Default: 5 minutes.
//
// Panics if d <= 0.
func WithLockTimeout(d time.Duration) ManagerOption {
	requirePositive("lock timeout", d)
	return func(c *managerConfig) {
		c.LockTimeout = d
	}
}

// WithStopGracePeriod sets how long a process stopped by pid gets between
// SIGTERM and SIGKILL.
//
// Default: 5 seconds.
//
// Panics if d <= 0.
func WithStopGracePeriod(d time.Duration) ManagerOption {
	requirePositive("stop grace period", d)
	return func(c *managerConfig) {
		c.StopGracePeriod = d
	}
}

// WithStopTimeout sets the maximum time allowed for a full stop of a server
// this run started itself, covering both the graceful window and the
// escalation.
//
// Default: 10 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) ManagerOption {
	requirePositive("stop timeout", d)
	return func(c *managerConfig) {
		c.StopTimeout = d
	}
}

// envOverrides mirrors the tunable manager fields for envconfig decoding.
// Field names map to APPENV_* variables via the envconfig tags.
type envOverrides struct {
	DataDir           string        `envconfig:"DATA_DIR"`
	StartupTimeout    time.Duration `envconfig:"STARTUP_TIMEOUT"`
	ProbeInterval     time.Duration `envconfig:"PROBE_INTERVAL"`
	ReuseProbeTimeout time.Duration `envconfig:"REUSE_PROBE_TIMEOUT"`
	LockTimeout       time.Duration `envconfig:"LOCK_TIMEOUT"`
	StopGracePeriod   time.Duration `envconfig:"STOP_GRACE_PERIOD"`
	StopTimeout       time.Duration `envconfig:"STOP_TIMEOUT"`
}

// FromEnvironment returns an option that applies APPENV_* environment
// overrides on top of whatever the config holds when the option runs.
// Supported variables, all optional:
//
//	APPENV_DATA_DIR            base data directory
//	APPENV_STARTUP_TIMEOUT     e.g. "10m"
//	APPENV_PROBE_INTERVAL      e.g. "100ms"
//	APPENV_REUSE_PROBE_TIMEOUT e.g. "5s"
//	APPENV_LOCK_TIMEOUT        e.g. "10m"
//	APPENV_STOP_GRACE_PERIOD   e.g. "15s"
//	APPENV_STOP_TIMEOUT        e.g. "30s"
//
// Unset variables leave the corresponding field untouched, so CI can
// retune a single knob without restating the rest. Because options apply
// in order, place FromEnvironment last to let the environment win over
// code, or first to let code win over the environment.
//
// Panics if a set variable cannot be parsed (durations use Go syntax,
// "90s" or "5m"; a set-but-empty duration is malformed too): a broken
// environment would otherwise fail much later and far less legibly,
// mid-EnsureStarted.
func FromEnvironment() ManagerOption {
	var env envOverrides
	if err := envconfig.Process("APPENV", &env); err != nil {
		panic(fmt.Sprintf("appenv: parse APPENV_* environment: %v", err))
	}
	return func(c *managerConfig) {
		if env.DataDir != "" {
			c.BaseDataDir = env.DataDir
		}
		if env.StartupTimeout > 0 {
			c.StartupTimeout = env.StartupTimeout
		}
		if env.ProbeInterval > 0 {
			c.ProbeInterval = env.ProbeInterval
		}
		if env.ReuseProbeTimeout > 0 {
			c.ReuseProbeTimeout = env.ReuseProbeTimeout
		}
		if env.LockTimeout > 0 {
			c.LockTimeout = env.LockTimeout
		}
		if env.StopGracePeriod > 0 {
			c.StopGracePeriod = env.StopGracePeriod
		}
		if env.StopTimeout > 0 {
			c.StopTimeout = env.StopTimeout
		}
	}
}

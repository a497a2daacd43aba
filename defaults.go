package appenv

import "time"

// Default configuration values for NewManager.
// These constants are exported so callers can reference the defaults
// when building custom configurations relative to them (e.g.,
// 2 * DefaultStartupTimeout).
const (
	// DefaultStartupTimeout is the maximum time allowed for a cold start,
	// from spawning the server to the first fully passing health check.
	// Cold starts routinely include dependency downloads and builds, hence
	// the minutes-scale default. Individual servers can override it via
	// ServerConfig.StartupTimeout.
	DefaultStartupTimeout = 5 * time.Minute

	// DefaultProbeInterval is the delay between consecutive health polls
	// while waiting for a starting server.
	DefaultProbeInterval = 250 * time.Millisecond

	// DefaultReuseProbeTimeout bounds each health request made when
	// deciding whether a recorded server is still usable. Kept short on
	// purpose: a healthy warm server answers in milliseconds, and a reuse
	// candidate that cannot do so is treated as stale and replaced.
	DefaultReuseProbeTimeout = 2 * time.Second

	// DefaultLockTimeout is the maximum time EnsureStarted waits for a
	// slot's cross-process lock. Another run holding the lock is normally
	// starting the same server, so the wait covers a full cold start.
	// Expiry returns ErrSlotContended rather than queueing forever behind
	// a wedged run.
	DefaultLockTimeout = 5 * time.Minute

	// DefaultStopGracePeriod is how long a process stopped by pid gets
	// between SIGTERM and SIGKILL.
	DefaultStopGracePeriod = 5 * time.Second

	// DefaultStopTimeout is the maximum time allowed for a full stop of a
	// server this run started itself.
	DefaultStopTimeout = 10 * time.Second

	// DefaultBaseDataDirName is the directory name under the system temp
	// directory where the registry, slot locks, and captured server output
	// are stored. The full path is computed as
	// filepath.Join(os.TempDir(), DefaultBaseDataDirName).
	//
	// Cross-run reuse depends on this path being stable: two test runs
	// only find each other's servers when they use the same data
	// directory.
	DefaultBaseDataDirName = "appenv"
)

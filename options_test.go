package appenv_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/appenv"
)

// panicTestCase defines a test case for option validation panic tests.
type panicTestCase struct {
	name     string
	panics   bool
	panicMsg string
	fn       func()
}

// requirePanics calls fn and verifies it panics (or not) with the expected message.
func requirePanics(t *testing.T, shouldPanic bool, wantMsg string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if shouldPanic && r == nil {
			t.Fatal("expected panic but didn't get one")
		}
		if !shouldPanic && r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
		if shouldPanic && r != nil {
			msg := fmt.Sprint(r)
			if msg != wantMsg {
				t.Fatalf("expected panic message %q, got %q", wantMsg, msg)
			}
		}
	}()
	fn()
}

// runPanicTests runs a slice of panic test cases using requirePanics.
func runPanicTests(t *testing.T, tests []panicTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			requirePanics(t, tt.panics, tt.panicMsg, tt.fn)
		})
	}
}

func TestWithBaseDataDirPanicsOnEmpty(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "empty",
			panics:   true,
			panicMsg: "appenv: base data directory must not be empty",
			fn:       func() { appenv.WithBaseDataDir("") },
		},
		{name: "valid", fn: func() { appenv.WithBaseDataDir("/var/tmp/appenv") }},
	})
}

func TestWithStartupTimeoutPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "appenv: startup timeout must be greater than 0, got 0s",
			fn:       func() { appenv.WithStartupTimeout(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "appenv: startup timeout must be greater than 0, got -1s",
			fn:       func() { appenv.WithStartupTimeout(-1 * time.Second) },
		},
		{name: "valid", fn: func() { appenv.WithStartupTimeout(10 * time.Minute) }},
	})
}

func TestWithProbeIntervalPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "appenv: probe interval must be greater than 0, got 0s",
			fn:       func() { appenv.WithProbeInterval(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "appenv: probe interval must be greater than 0, got -1s",
			fn:       func() { appenv.WithProbeInterval(-1 * time.Second) },
		},
		{name: "valid", fn: func() { appenv.WithProbeInterval(100 * time.Millisecond) }},
	})
}

func TestWithReuseProbeTimeoutPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "appenv: reuse probe timeout must be greater than 0, got 0s",
			fn:       func() { appenv.WithReuseProbeTimeout(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "appenv: reuse probe timeout must be greater than 0, got -1s",
			fn:       func() { appenv.WithReuseProbeTimeout(-1 * time.Second) },
		},
		{name: "valid", fn: func() { appenv.WithReuseProbeTimeout(5 * time.Second) }},
	})
}

func TestWithLockTimeoutPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "appenv: lock timeout must be greater than 0, got 0s",
			fn:       func() { appenv.WithLockTimeout(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "appenv: lock timeout must be greater than 0, got -1s",
			fn:       func() { appenv.WithLockTimeout(-1 * time.Second) },
		},
		{name: "valid", fn: func() { appenv.WithLockTimeout(time.Minute) }},
	})
}

func TestWithStopGracePeriodPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "appenv: stop grace period must be greater than 0, got 0s",
			fn:       func() { appenv.WithStopGracePeriod(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "appenv: stop grace period must be greater than 0, got -1s",
			fn:       func() { appenv.WithStopGracePeriod(-1 * time.Second) },
		},
		{name: "valid", fn: func() { appenv.WithStopGracePeriod(15 * time.Second) }},
	})
}

func TestWithStopTimeoutPanicsOnInvalid(t *testing.T) {
	t.Parallel()
	runPanicTests(t, []panicTestCase{
		{
			name:     "zero",
			panics:   true,
			panicMsg: "appenv: stop timeout must be greater than 0, got 0s",
			fn:       func() { appenv.WithStopTimeout(0) },
		},
		{
			name:     "negative",
			panics:   true,
			panicMsg: "appenv: stop timeout must be greater than 0, got -1s",
			fn:       func() { appenv.WithStopTimeout(-1 * time.Second) },
		},
		{name: "valid", fn: func() { appenv.WithStopTimeout(30 * time.Second) }},
	})
}

func TestOptionApplicationDefaults(t *testing.T) {
	t.Parallel()

	snap := appenv.ApplyOptionsForTesting()
	wantBaseDir := filepath.Join(os.TempDir(), appenv.DefaultBaseDataDirName)

	if snap.BaseDataDir != wantBaseDir {
		t.Errorf("BaseDataDir = %q, want %q", snap.BaseDataDir, wantBaseDir)
	}
	if snap.StartupTimeout != appenv.DefaultStartupTimeout {
		t.Errorf("StartupTimeout = %v, want %v", snap.StartupTimeout, appenv.DefaultStartupTimeout)
	}
	if snap.ProbeInterval != appenv.DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v, want %v", snap.ProbeInterval, appenv.DefaultProbeInterval)
	}
	if snap.ReuseProbeTimeout != appenv.DefaultReuseProbeTimeout {
		t.Errorf("ReuseProbeTimeout = %v, want %v", snap.ReuseProbeTimeout, appenv.DefaultReuseProbeTimeout)
	}
	if snap.LockTimeout != appenv.DefaultLockTimeout {
		t.Errorf("LockTimeout = %v, want %v", snap.LockTimeout, appenv.DefaultLockTimeout)
	}
	if snap.StopGracePeriod != appenv.DefaultStopGracePeriod {
		t.Errorf("StopGracePeriod = %v, want %v", snap.StopGracePeriod, appenv.DefaultStopGracePeriod)
	}
	if snap.StopTimeout != appenv.DefaultStopTimeout {
		t.Errorf("StopTimeout = %v, want %v", snap.StopTimeout, appenv.DefaultStopTimeout)
	}
}

func TestOptionApplicationOverrides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opt    appenv.ManagerOption
		verify func(t *testing.T, snap appenv.ConfigSnapshot)
	}{
		{
			name: "WithBaseDataDir",
			opt:  appenv.WithBaseDataDir("/custom/data"),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.BaseDataDir != "/custom/data" {
					t.Errorf("BaseDataDir = %q, want %q", snap.BaseDataDir, "/custom/data")
				}
			},
		},
		{
			name: "WithStartupTimeout",
			opt:  appenv.WithStartupTimeout(10 * time.Minute),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.StartupTimeout != 10*time.Minute {
					t.Errorf("StartupTimeout = %v, want 10m", snap.StartupTimeout)
				}
			},
		},
		{
			name: "WithProbeInterval",
			opt:  appenv.WithProbeInterval(100 * time.Millisecond),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.ProbeInterval != 100*time.Millisecond {
					t.Errorf("ProbeInterval = %v, want 100ms", snap.ProbeInterval)
				}
			},
		},
		{
			name: "WithReuseProbeTimeout",
			opt:  appenv.WithReuseProbeTimeout(5 * time.Second),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.ReuseProbeTimeout != 5*time.Second {
					t.Errorf("ReuseProbeTimeout = %v, want 5s", snap.ReuseProbeTimeout)
				}
			},
		},
		{
			name: "WithLockTimeout",
			opt:  appenv.WithLockTimeout(time.Minute),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.LockTimeout != time.Minute {
					t.Errorf("LockTimeout = %v, want 1m", snap.LockTimeout)
				}
			},
		},
		{
			name: "WithStopGracePeriod",
			opt:  appenv.WithStopGracePeriod(15 * time.Second),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.StopGracePeriod != 15*time.Second {
					t.Errorf("StopGracePeriod = %v, want 15s", snap.StopGracePeriod)
				}
			},
		},
		{
			name: "WithStopTimeout",
			opt:  appenv.WithStopTimeout(30 * time.Second),
			verify: func(t *testing.T, snap appenv.ConfigSnapshot) {
				t.Helper()
				if snap.StopTimeout != 30*time.Second {
					t.Errorf("StopTimeout = %v, want 30s", snap.StopTimeout)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			snap := appenv.ApplyOptionsForTesting(tc.opt)
			tc.verify(t, snap)
		})
	}
}

func TestOptionApplicationMultipleOptions(t *testing.T) {
	t.Parallel()

	snap := appenv.ApplyOptionsForTesting(
		appenv.WithBaseDataDir("/tmp/custom-appenv"),
		appenv.WithStartupTimeout(2*time.Minute),
		appenv.WithProbeInterval(50*time.Millisecond),
		appenv.WithLockTimeout(time.Minute),
		appenv.WithStopTimeout(20*time.Second),
	)

	if snap.BaseDataDir != "/tmp/custom-appenv" {
		t.Errorf("BaseDataDir = %q, want %q", snap.BaseDataDir, "/tmp/custom-appenv")
	}
	if snap.StartupTimeout != 2*time.Minute {
		t.Errorf("StartupTimeout = %v, want 2m", snap.StartupTimeout)
	}
	if snap.ProbeInterval != 50*time.Millisecond {
		t.Errorf("ProbeInterval = %v, want 50ms", snap.ProbeInterval)
	}
	if snap.LockTimeout != time.Minute {
		t.Errorf("LockTimeout = %v, want 1m", snap.LockTimeout)
	}
	if snap.StopTimeout != 20*time.Second {
		t.Errorf("StopTimeout = %v, want 20s", snap.StopTimeout)
	}
}

func TestOptionApplicationLastWriteWins(t *testing.T) {
	t.Parallel()

	snap := appenv.ApplyOptionsForTesting(
		appenv.WithStartupTimeout(time.Minute),
		appenv.WithStartupTimeout(3*time.Minute),
	)

	if snap.StartupTimeout != 3*time.Minute {
		t.Errorf("StartupTimeout = %v, want 3m (last write wins)", snap.StartupTimeout)
	}
}

// appenvEnvKeys are the variables FromEnvironment reads. Tests touching the
// process environment clear all of them first so values leaking in from the
// caller's shell cannot skew assertions.
var appenvEnvKeys = []string{
	"APPENV_DATA_DIR",
	"APPENV_STARTUP_TIMEOUT",
	"APPENV_PROBE_INTERVAL",
	"APPENV_REUSE_PROBE_TIMEOUT",
	"APPENV_LOCK_TIMEOUT",
	"APPENV_STOP_GRACE_PERIOD",
	"APPENV_STOP_TIMEOUT",
}

// clearAppenvEnv unsets every APPENV_* variable for the duration of the
// test. t.Setenv registers the restore; the explicit Unsetenv makes the
// variable absent rather than empty (a set-but-empty duration would be a
// parse error, not a no-op).
func clearAppenvEnv(t *testing.T) {
	t.Helper()
	for _, key := range appenvEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// TestFromEnvironmentOverrides verifies that set APPENV_* variables
// override the compiled defaults while unset ones leave them alone.
// Uses t.Setenv, so it cannot run in parallel.
func TestFromEnvironmentOverrides(t *testing.T) {
	clearAppenvEnv(t)
	t.Setenv("APPENV_DATA_DIR", "/ci/appenv-data")
	t.Setenv("APPENV_STARTUP_TIMEOUT", "10m")
	t.Setenv("APPENV_STOP_TIMEOUT", "30s")

	snap := appenv.ApplyOptionsForTesting(appenv.FromEnvironment())

	if snap.BaseDataDir != "/ci/appenv-data" {
		t.Errorf("BaseDataDir = %q, want %q", snap.BaseDataDir, "/ci/appenv-data")
	}
	if snap.StartupTimeout != 10*time.Minute {
		t.Errorf("StartupTimeout = %v, want 10m", snap.StartupTimeout)
	}
	if snap.StopTimeout != 30*time.Second {
		t.Errorf("StopTimeout = %v, want 30s", snap.StopTimeout)
	}

	// Untouched knobs keep their defaults.
	if snap.ProbeInterval != appenv.DefaultProbeInterval {
		t.Errorf("ProbeInterval = %v, want default %v", snap.ProbeInterval, appenv.DefaultProbeInterval)
	}
	if snap.LockTimeout != appenv.DefaultLockTimeout {
		t.Errorf("LockTimeout = %v, want default %v", snap.LockTimeout, appenv.DefaultLockTimeout)
	}
}

// TestFromEnvironmentEmptyEnvironment verifies that with no APPENV_*
// variables set, FromEnvironment is a no-op over the defaults.
func TestFromEnvironmentEmptyEnvironment(t *testing.T) {
	clearAppenvEnv(t)

	got := appenv.ApplyOptionsForTesting(appenv.FromEnvironment())
	want := appenv.ApplyOptionsForTesting()
	if got != want {
		t.Errorf("FromEnvironment with empty environment changed the config:\n got %+v\nwant %+v", got, want)
	}
}

// TestFromEnvironmentAppliesInOrder verifies the documented ordering
// contract: options apply in order, so FromEnvironment placed last wins
// over an explicit With* option, and placed first loses to it.
func TestFromEnvironmentAppliesInOrder(t *testing.T) {
	clearAppenvEnv(t)
	t.Setenv("APPENV_STARTUP_TIMEOUT", "7m")

	last := appenv.ApplyOptionsForTesting(
		appenv.WithStartupTimeout(time.Minute),
		appenv.FromEnvironment(),
	)
	if last.StartupTimeout != 7*time.Minute {
		t.Errorf("environment last: StartupTimeout = %v, want 7m", last.StartupTimeout)
	}

	first := appenv.ApplyOptionsForTesting(
		appenv.FromEnvironment(),
		appenv.WithStartupTimeout(time.Minute),
	)
	if first.StartupTimeout != time.Minute {
		t.Errorf("environment first: StartupTimeout = %v, want 1m", first.StartupTimeout)
	}
}

// TestFromEnvironmentPanicsOnMalformed verifies that an unparsable
// duration variable panics at option construction rather than surfacing
// later inside EnsureStarted.
func TestFromEnvironmentPanicsOnMalformed(t *testing.T) {
	clearAppenvEnv(t)
	t.Setenv("APPENV_STARTUP_TIMEOUT", "not-a-duration")

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for malformed APPENV_STARTUP_TIMEOUT")
		}
		msg := fmt.Sprint(r)
		if !strings.HasPrefix(msg, "appenv: parse APPENV_* environment:") {
			t.Fatalf("panic message = %q, want the appenv parse prefix", msg)
		}
	}()
	appenv.FromEnvironment()
}

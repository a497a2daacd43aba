package core

import (
	"errors"
	"fmt"
	"time"
)

// ManagerConfig holds configuration for Manager instances.
//
// Concurrency contract: all fields are immutable after construction via
// NewManager. EnsureStarted goroutines read them without synchronization,
// relying on this guarantee.
type ManagerConfig struct {
	// BaseDataDir is the directory holding the registry database, the slot
	// lock files, and captured server output. It must be stable across
	// runs: two runs only find each other's servers when they look in the
	// same directory.
	BaseDataDir string

	// StartupTimeout bounds a cold start from spawn to the first fully
	// passing health check. Servers may override it per slot.
	// Cold starts routinely include dependency downloads and builds, so
	// this is minutes-scale by default.
	StartupTimeout time.Duration

	// ProbeInterval is the delay between consecutive health polls while
	// waiting for a starting server.
	ProbeInterval time.Duration

	// ReuseProbeTimeout bounds each health request made when deciding
	// whether a recorded server is still usable. Kept short: a reuse
	// candidate that cannot answer quickly is treated as stale.
	ReuseProbeTimeout time.Duration

	// LockTimeout bounds the wait for a slot's cross-process lock. Expiry
	// is fatal (ErrSlotContended): indefinite contention means another run
	// is wedged, and queueing behind it forever helps nobody.
	LockTimeout time.Duration

	// StopGracePeriod is how long a process stopped by pid gets between
	// SIGTERM and SIGKILL.
	StopGracePeriod time.Duration

	// StopTimeout bounds a full stop of a server this run started itself.
	StopTimeout time.Duration
}

// Validate checks all ManagerConfig invariants and returns an error
// describing every violation found. It uses errors.Join to report multiple
// issues at once, allowing callers to fix all problems in a single pass
// rather than playing whack-a-mole with one error at a time.
func (c ManagerConfig) Validate() error {
	var errs []error

	if c.BaseDataDir == "" {
		errs = append(errs, errors.New("base data directory must not be empty"))
	}
	if c.StartupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("startup timeout must be greater than 0, got %s", c.StartupTimeout))
	}
	if c.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("probe interval must be greater than 0, got %s", c.ProbeInterval))
	}
	if c.ReuseProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reuse probe timeout must be greater than 0, got %s", c.ReuseProbeTimeout))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("lock timeout must be greater than 0, got %s", c.LockTimeout))
	}
	if c.StopGracePeriod <= 0 {
		errs = append(errs, fmt.Errorf("stop grace period must be greater than 0, got %s", c.StopGracePeriod))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be greater than 0, got %s", c.StopTimeout))
	}

	return errors.Join(errs...)
}

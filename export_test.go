package appenv

import "time"

// ConfigSnapshot holds a copy of managerConfig fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	BaseDataDir       string
	StartupTimeout    time.Duration
	ProbeInterval     time.Duration
	ReuseProbeTimeout time.Duration
	LockTimeout       time.Duration
	StopGracePeriod   time.Duration
	StopTimeout       time.Duration
}

// ApplyOptionsForTesting creates a default managerConfig, applies the given
// options, and returns a ConfigSnapshot of the result. This tests the option
// closures directly without constructing a Manager.
func ApplyOptionsForTesting(opts ...ManagerOption) ConfigSnapshot {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		BaseDataDir:       cfg.BaseDataDir,
		StartupTimeout:    cfg.StartupTimeout,
		ProbeInterval:     cfg.ProbeInterval,
		ReuseProbeTimeout: cfg.ReuseProbeTimeout,
		LockTimeout:       cfg.LockTimeout,
		StopGracePeriod:   cfg.StopGracePeriod,
		StopTimeout:       cfg.StopTimeout,
	}
}

package appenv

import (
	"context"
	"os"
	"path/filepath"

	"github.com/giantswarm/appenv/internal/core"
)

// Compile-time interface satisfaction check.
var _ Manager = (*managerWrapper)(nil)

// managerWrapper wraps core.Manager to implement the Manager interface.
//
// The core.Manager is stored as a named (unexported) field rather than
// embedded to prevent callers from using type assertions to access internal
// methods that are not part of the public Manager interface.
type managerWrapper struct {
	mgr *core.Manager
}

// EnsureStarted wraps core.Manager.EnsureStarted.
func (w *managerWrapper) EnsureStarted(ctx context.Context, cfg ServerConfig) (StartResult, error) {
	return w.mgr.EnsureStarted(ctx, cfg)
}

// Stop wraps core.Manager.Stop.
func (w *managerWrapper) Stop(ctx context.Context, slot string) error {
	return w.mgr.Stop(ctx, slot)
}

// Status wraps core.Manager.Status.
func (w *managerWrapper) Status(ctx context.Context, slot string) (Status, error) {
	return w.mgr.Status(ctx, slot)
}

// Stats wraps core.Manager.Stats.
func (w *managerWrapper) Stats() Stats {
	return w.mgr.Stats()
}

// PurgeStale wraps core.Manager.PurgeStale.
func (w *managerWrapper) PurgeStale(ctx context.Context) (int, error) {
	return w.mgr.PurgeStale(ctx)
}

// Close wraps core.Manager.Close.
func (w *managerWrapper) Close() error {
	return w.mgr.Close()
}

// defaultManagerConfig returns a managerConfig populated with all default
// values. Both NewManager and test helpers use this to avoid duplicating
// the default field assignments.
func defaultManagerConfig() managerConfig {
	return managerConfig{core.ManagerConfig{
		BaseDataDir:       filepath.Join(os.TempDir(), DefaultBaseDataDirName),
		StartupTimeout:    DefaultStartupTimeout,
		ProbeInterval:     DefaultProbeInterval,
		ReuseProbeTimeout: DefaultReuseProbeTimeout,
		LockTimeout:       DefaultLockTimeout,
		StopGracePeriod:   DefaultStopGracePeriod,
		StopTimeout:       DefaultStopTimeout,
	}}
}

// NewManager creates a Manager with the given options. This performs no
// I/O: the registry opens lazily on first use.
//
// Every call returns an independent Manager. Coordination does not happen
// through shared in-process state but through the on-disk registry and the
// per-slot file locks, so two managers pointed at the same data directory
// cooperate exactly like two separate OS processes would. The common setup
// is one Manager per test binary, created in TestMain.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns Manager interface by design for testability (mockable).
func NewManager(opts ...ManagerOption) Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &managerWrapper{mgr: core.NewManagerWithConfig(cfg.toCoreConfig())}
}

package appenv

import (
	"context"

	"github.com/giantswarm/appenv/internal/core"
)

// StartResult describes the outcome of a successful EnsureStarted call.
//
// StartResult is a type alias (not a named type) so the value returned by
// internal/core passes through the public API unconverted. See
// [core.StartResult] for field documentation.
type StartResult = core.StartResult

// Status describes what the registry records for a slot, as reported by
// Manager.Status. The zero value means no usable server is recorded.
//
// Status is a type alias for the same reason as [StartResult].
type Status = core.Status

// Stats is a point-in-time snapshot of the manager's lifecycle counters.
//
// Stats is a type alias for the same reason as [StartResult].
type Stats = core.Stats

// Manager keeps application servers running across test runs.
//
// A Manager owns no servers: it owns a data directory holding a registry of
// running servers, and EnsureStarted either adopts the recorded server for a
// slot or starts a fresh one. Servers deliberately outlive the Manager (and
// the process) so the next run can reuse them; Close releases the Manager's
// own resources without stopping anything.
//
// Callers follow this lifecycle:
//
//	NewManager → EnsureStarted (repeatable, any slots) → Close
//
// Stop is for tests that need a cold server; routine teardown is just Close.
// All methods are safe for concurrent use.
type Manager interface {
	// EnsureStarted makes sure a server matching cfg is running and
	// healthy, and returns its base URL. The server recorded for
	// cfg.Slot is reused when its config fingerprint matches and it
	// still answers health checks; otherwise it is stopped and a fresh
	// server is started. The result's Reused field says which happened.
	//
	// Calls for the same slot are serialized, in-process and across OS
	// processes (via a per-slot file lock under the data directory), so
	// concurrent callers get the same server instead of racing spawns.
	//
	// Returns ErrInvalidConfig if cfg fails validation,
	// ErrSlotContended if the cross-process lock cannot be acquired
	// within the lock timeout, ErrStartupTimeout (as a
	// *StartupTimeoutError carrying captured server output) if the
	// server never becomes healthy, ErrLaunchFailed (as a *LaunchError)
	// if it cannot be spawned at all, and ErrManagerClosed after Close.
	EnsureStarted(ctx context.Context, cfg ServerConfig) (StartResult, error)

	// Stop terminates the server recorded for slot, whether this run
	// started it or a previous one did, and removes it from the
	// registry. It is a no-op for slots with no recorded server.
	//
	// Most callers never need Stop: leaving servers running is the
	// point. Use it when a test requires a genuinely cold start.
	Stop(ctx context.Context, slot string) error

	// Status reports what the registry records for slot and whether
	// that server is currently live. A zero Status means no usable
	// server is recorded. The answer is momentary: nothing prevents
	// the state from changing right after it is computed.
	Status(ctx context.Context, slot string) (Status, error)

	// Stats returns a snapshot of the lifecycle counters: servers
	// started, reused, stopped, and failed EnsureStarted attempts.
	Stats() Stats

	// PurgeStale removes registry records whose server is no longer
	// live, returning the number removed. Slots currently locked by a
	// running EnsureStarted are skipped. Useful as CI housekeeping for
	// data directories that accumulate dead records.
	PurgeStale(ctx context.Context) (int, error)

	// Close releases the manager's resources: per-slot handles, the
	// registry store, and the slot locks it still holds. It does NOT
	// stop any servers; they are meant to outlive the run. Close is
	// idempotent; operations after Close return ErrManagerClosed.
	Close() error
}

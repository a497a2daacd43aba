package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/probe"
	"github.com/giantswarm/appenv/internal/process"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrEmptyDir is returned by New when the data directory is empty.
const ErrEmptyDir = sentinel.Error("data directory must not be empty")

// ErrLockNotAcquired is returned by LockSlot when the slot lock could not be
// taken before the context expired. Another run is holding the slot.
const ErrLockNotAcquired = sentinel.Error("slot lock not acquired")

// errSlotStillLive marks a purge no-op for a healthy server.
const errSlotStillLive = sentinel.Error("slot still live")

// lockRetryInterval is the interval between consecutive attempts to acquire
// a slot lock. 50ms balances responsiveness (low wait after the holder
// releases) against CPU overhead from busy-polling.
const lockRetryInterval = 50 * time.Millisecond

// dbFileName is the registry database file under the data directory.
const dbFileName = "registry.db"

// Registry stores and verifies descriptors of running servers. It is safe
// for concurrent use; the underlying database serializes statements on a
// single connection.
type Registry struct {
	dir    string
	db     *sql.DB
	prober *probe.Prober
	log    *slog.Logger
}

// New opens the registry under dir, creating the directory and database as
// needed. An unreadable or corrupt database is quarantined and recreated;
// New fails only when even a fresh database cannot be set up. probeTimeout
// bounds each liveness probe request; non-positive values fall back to the
// prober default.
func New(dir string, probeTimeout time.Duration, logger *slog.Logger) (*Registry, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	r := &Registry{
		dir:    dir,
		prober: probe.NewProber(probeTimeout, logger),
		log:    logger,
	}

	db, err := openStore(r.dbPath())
	if err != nil {
		r.log.Warn("registry database unusable; quarantining and recreating",
			"path", r.dbPath(), "error", err)
		if qErr := quarantineDB(r.dbPath()); qErr != nil {
			return nil, errors.Join(err, qErr)
		}
		db, err = openStore(r.dbPath())
		if err != nil {
			return nil, fmt.Errorf("recreate registry database: %w", err)
		}
	}
	r.db = db
	return r, nil
}

// Close releases the database handle and probe connections. It does not
// touch any recorded server; descriptors outlive the Registry by design.
func (r *Registry) Close() error {
	r.prober.Close()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Dir returns the data directory the registry lives in.
func (r *Registry) Dir() string {
	return r.dir
}

// TryLoad returns the recorded descriptor for slot, if any. Read failures
// are logged and reported as an absent slot rather than returned: a
// descriptor that cannot be read is indistinguishable from no descriptor,
// and the caller's fallback (start a fresh server, overwrite the record) is
// the repair.
func (r *Registry) TryLoad(ctx context.Context, slot string) (Descriptor, bool) {
	d, ok, err := getSlot(ctx, r.db, slot)
	if err != nil {
		r.log.Warn("registry read failed; treating slot as absent",
			"slot", slot, "error", err)
		return Descriptor{}, false
	}
	return d, ok
}

// Save records d as the live server for its slot. A write failure triggers
// one quarantine-and-recreate cycle before giving up; an error from Save
// therefore means the registry is persistently unwritable, and the caller
// must not leave the server running unrecorded.
func (r *Registry) Save(ctx context.Context, d Descriptor) error {
	err := upsertSlot(ctx, r.db, d)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// A canceled context is not database corruption.
		return err
	}

	r.log.Warn("registry write failed; quarantining and recreating",
		"slot", d.Slot, "error", err)
	if resetErr := r.reset(); resetErr != nil {
		return errors.Join(err, resetErr)
	}
	if retryErr := upsertSlot(ctx, r.db, d); retryErr != nil {
		return fmt.Errorf("registry write failed after recreate: %w", errors.Join(err, retryErr))
	}
	return nil
}

// Remove deletes the descriptor for slot.
func (r *Registry) Remove(ctx context.Context, slot string) error {
	return deleteSlot(ctx, r.db, slot)
}

// Touch records that slot's server passed a liveness check at the given
// time. Failures are logged, not returned; a stale checked_at only makes
// the next purge look harder at a server that is in fact fine.
func (r *Registry) Touch(ctx context.Context, slot string, at time.Time) {
	if err := touchSlot(ctx, r.db, slot, at); err != nil {
		r.log.Debug("registry touch failed", "slot", slot, "error", err)
	}
}

// List returns all recorded descriptors.
func (r *Registry) List(ctx context.Context) ([]Descriptor, error) {
	return listSlots(ctx, r.db)
}

// IsLive reports whether the server recorded by d is running and healthy:
// its pid must exist and every recorded health path must answer 2xx/3xx.
// When the server is not live, the returned error says why.
//
// A descriptor without a pid belongs to a delegated harness whose process
// model this system cannot see; the health probes alone decide for those.
// The pid check alone is never trusted either way because pids are
// recycled; an unrelated process can wear a dead server's pid. The health
// probe is what actually proves the right server is listening.
func (r *Registry) IsLive(ctx context.Context, d Descriptor) (bool, error) {
	if d.PID > 0 && !process.Alive(d.PID) {
		return false, fmt.Errorf("pid %d is not running", d.PID)
	}
	if err := r.prober.CheckAll(ctx, d.BaseURL, d.HealthPaths); err != nil {
		return false, fmt.Errorf("health check: %w", err)
	}
	return true, nil
}

// LockSlot acquires the cross-process lock for slot, retrying until the
// context expires. The caller must release the returned lock with
// ReleaseSlot. Locks are per file descriptor, so two managers in the same
// process exclude each other just like two separate runs do.
func (r *Registry) LockSlot(ctx context.Context, slot string) (*flock.Flock, error) {
	lockPath := r.lockPath(slot)
	if err := fileutil.EnsureDirForFile(lockPath); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring slot lock %s: %w", lockPath, errors.Join(ErrLockNotAcquired, err))
	}
	if !locked {
		// Defensive: TryLockContext should return an error when it fails,
		// but handle the case where it returns (false, nil) unexpectedly.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquiring slot lock %s: %w", lockPath, errors.Join(ErrLockNotAcquired, ctx.Err()))
		}
		return nil, fmt.Errorf("acquiring slot lock %s: %w", lockPath, ErrLockNotAcquired)
	}
	return fl, nil
}

// TryLockSlot attempts to take the slot lock without waiting. It returns
// (nil, nil) when the lock is currently held elsewhere. Used by purge-style
// sweeps that must skip slots another run is actively managing.
func (r *Registry) TryLockSlot(slot string) (*flock.Flock, error) {
	lockPath := r.lockPath(slot)
	if err := fileutil.EnsureDirForFile(lockPath); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("probing slot lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

// ReleaseSlot releases a slot lock and closes its file descriptor.
// The lock file is intentionally left on disk to avoid a race where
// removing it could invalidate a lock concurrently acquired by another
// process. Close() calls Unlock() internally, so no explicit Unlock is
// needed. Errors are logged at debug level; this is best-effort cleanup.
func (r *Registry) ReleaseSlot(fl *flock.Flock) {
	if fl != nil {
		if err := fl.Close(); err != nil {
			r.log.Debug("failed to release slot lock", "path", fl.Path(), "err", err)
		}
	}
}

// PurgeStale removes descriptors whose servers are gone or no longer
// healthy, stopping still-running unhealthy processes along the way. Slots
// whose lock is held by another run are skipped; that run is responsible
// for them. Returns the number of descriptors removed. Per-slot failures
// are joined into the returned error but do not stop the sweep.
func (r *Registry) PurgeStale(ctx context.Context, stopGrace time.Duration) (int, error) {
	descriptors, err := r.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, d := range descriptors {
		fl, err := r.TryLockSlot(d.Slot)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if fl == nil {
			r.log.Debug("slot busy; skipping purge", "slot", d.Slot)
			continue
		}

		switch err := r.purgeSlot(ctx, d, stopGrace); {
		case errors.Is(err, errSlotStillLive):
			// Healthy server; leave it alone.
		case err != nil:
			errs = append(errs, err)
		default:
			removed++
		}
		r.ReleaseSlot(fl)
	}
	return removed, errors.Join(errs...)
}

// purgeSlot handles one locked slot during a purge sweep. A healthy server
// is reported via errSlotStillLive so the caller can tell "left alone"
// apart from "removed". Dead or unhealthy servers are stopped if needed and
// their descriptors deleted.
func (r *Registry) purgeSlot(ctx context.Context, d Descriptor, stopGrace time.Duration) error {
	if live, _ := r.IsLive(ctx, d); live {
		return errSlotStillLive
	}

	if process.Alive(d.PID) {
		r.log.Info("stopping unhealthy server", "slot", d.Slot, "pid", d.PID)
		if err := process.StopDetached(ctx, d.PID, stopGrace, r.log); err != nil {
			return fmt.Errorf("stop stale server for slot %s (pid %d): %w", d.Slot, d.PID, err)
		}
	}
	if err := r.Remove(ctx, d.Slot); err != nil {
		return err
	}
	r.log.Info("purged stale slot", "slot", d.Slot, "pid", d.PID)
	return nil
}

// dbPath returns the registry database file path.
func (r *Registry) dbPath() string {
	return filepath.Join(r.dir, dbFileName)
}

// lockPath returns the lock file path for slot. Slot names are validated
// upstream to a filename-safe alphabet, so they can be used here directly.
func (r *Registry) lockPath(slot string) string {
	return filepath.Join(r.dir, "locks", slot+".lock")
}

// reset closes the database, quarantines its files, and opens a fresh one.
func (r *Registry) reset() error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Debug("close corrupt registry database", "error", err)
		}
		r.db = nil
	}
	if err := quarantineDB(r.dbPath()); err != nil {
		return err
	}
	db, err := openStore(r.dbPath())
	if err != nil {
		return fmt.Errorf("recreate registry database: %w", err)
	}
	r.db = db
	return nil
}

// quarantineDB moves the database file aside under a timestamped name and
// drops its WAL sidecars, which would otherwise be replayed into the fresh
// database. A missing database file is fine; the quarantine then only
// clears sidecars.
func quarantineDB(path string) error {
	dst := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("quarantine registry database: %w", err)
	}
	for _, sidecar := range []string{path + "-wal", path + "-shm"} {
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove registry sidecar %s: %w", sidecar, err)
		}
	}
	return nil
}

package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/appenv/internal/process"
)

// Stop terminates the server occupying slot, whether this run started it
// or an earlier one, and removes its record. Stopping a slot that holds
// nothing is a no-op. Like EnsureStarted, the teardown runs under the
// slot's cross-process lock.
func (m *Manager) Stop(ctx context.Context, slot string) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	h := m.slot(slot)
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := m.stopSlot(ctx, h, slot); err != nil {
		return fmt.Errorf("stop server %q: %w", slot, err)
	}
	return nil
}

// stopSlot tears one slot down under its cross-process lock. Unlike the
// retire path inside EnsureStarted, failures here are returned: the caller
// asked for the stop explicitly and nothing is about to overwrite the slot.
func (m *Manager) stopSlot(ctx context.Context, h *slotHandle, slot string) error {
	reg, err := m.openRegistry()
	if err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, m.cfg.LockTimeout)
	fl, err := reg.LockSlot(lockCtx, slot)
	cancel()
	if err != nil {
		return err
	}
	defer reg.ReleaseSlot(fl)

	d, found := reg.TryLoad(ctx, slot)
	if !found && h.server == nil {
		return nil
	}

	var stopErr error
	switch {
	case h.server != nil && (!found || h.server.PID() == d.PID):
		stopCtx, stopCancel := context.WithTimeout(ctx, m.cfg.StopTimeout)
		stopErr = h.server.Stop(stopCtx)
		stopCancel()
		h.server = nil
	case found && d.PID > 0:
		stopErr = process.StopDetached(ctx, d.PID, m.cfg.StopGracePeriod, Logger())
	default:
		// A delegated record from another run: no handle to route through
		// and no pid to signal. Only the record can be dropped.
		Logger().Warn("recorded server has no reachable process; dropping record only",
			"slot", slot)
	}

	if h.server != nil {
		// Leftover handle from an older incarnation of the slot; the
		// recorded server is the one that was just signaled.
		h.server.Release()
		h.server = nil
	}

	if found {
		if err := reg.Remove(ctx, slot); err != nil {
			return errors.Join(stopErr, fmt.Errorf("remove record: %w", err))
		}
	}
	if stopErr != nil {
		return stopErr
	}

	m.stopped.Add(1)
	return nil
}

// Status reports what currently occupies slot without changing anything.
// Running is computed fresh from the record's process and health checks,
// not from a cached view, so the answer is momentary by nature.
func (m *Manager) Status(ctx context.Context, slot string) (Status, error) {
	if m.closed.Load() {
		return Status{}, ErrManagerClosed
	}

	reg, err := m.openRegistry()
	if err != nil {
		return Status{}, fmt.Errorf("status of server %q: %w", slot, err)
	}

	d, found := reg.TryLoad(ctx, slot)
	if !found {
		return Status{}, nil
	}

	st := Status{
		BaseURL:     d.BaseURL,
		PID:         d.PID,
		Fingerprint: d.Fingerprint,
	}
	live, liveErr := reg.IsLive(ctx, d)
	st.Running = live
	if !live {
		Logger().Debug("recorded server is not live",
			"slot", slot, "reason", liveErr)
	}
	return st, nil
}

// PurgeStale sweeps the registry and removes records whose servers are
// dead or no longer healthy, stopping any process still running behind an
// unhealthy record. Slots currently locked by another run are skipped.
// Returns the number of records removed.
func (m *Manager) PurgeStale(ctx context.Context) (int, error) {
	if m.closed.Load() {
		return 0, ErrManagerClosed
	}

	reg, err := m.openRegistry()
	if err != nil {
		return 0, fmt.Errorf("purge stale servers: %w", err)
	}

	return reg.PurgeStale(ctx, m.cfg.StopGracePeriod)
}

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/appenv/internal/config"
	"github.com/giantswarm/appenv/internal/fingerprint"
	"github.com/giantswarm/appenv/internal/hosting"
	"github.com/giantswarm/appenv/internal/process"
	"github.com/giantswarm/appenv/internal/registry"
)

// EnsureStarted makes sure a server matching cfg is running and reachable,
// and returns where to find it. A live server recorded by any earlier run
// is reused when its configuration fingerprint matches; a dead, unhealthy,
// or differently-configured one is stopped and replaced. The whole
// check-then-launch sequence runs under the slot's cross-process lock, so
// concurrent runs converge on one server per slot.
//
// Idempotent: calling it again with the same configuration returns the
// same server with Reused set.
func (m *Manager) EnsureStarted(ctx context.Context, cfg config.ServerConfig) (StartResult, error) {
	if m.closed.Load() {
		return StartResult{}, ErrManagerClosed
	}

	res, err := m.ensure(ctx, cfg)
	if err != nil {
		m.failed.Add(1)
		return StartResult{}, err
	}
	if res.Reused {
		m.reused.Add(1)
	} else {
		m.started.Add(1)
	}
	return res, nil
}

// ensure validates, fingerprints, and runs the per-slot state walk under
// the in-process slot mutex. Split from EnsureStarted so the counter
// bookkeeping stays in one place.
func (m *Manager) ensure(ctx context.Context, cfg config.ServerConfig) (StartResult, error) {
	if err := cfg.Validate(); err != nil {
		return StartResult{}, fmt.Errorf("validate server %q: %w", cfg.Slot, errors.Join(ErrInvalidConfig, err))
	}

	fp, err := fingerprint.Compute(cfg)
	if err != nil {
		return StartResult{}, fmt.Errorf("fingerprint server %q: %w", cfg.Slot, err)
	}

	h := m.slot(cfg.Slot)
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := m.ensureSlot(ctx, h, cfg, fp)
	if err != nil {
		return StartResult{}, fmt.Errorf("ensure server %q (fingerprint %s): %w", cfg.Slot, fp, err)
	}
	return res, nil
}

// ensureSlot holds the slot's cross-process lock for the whole
// check-then-launch window: load the record, reuse it when possible,
// retire it when not, start fresh otherwise.
func (m *Manager) ensureSlot(ctx context.Context, h *slotHandle, cfg config.ServerConfig, fp string) (StartResult, error) {
	reg, err := m.openRegistry()
	if err != nil {
		return StartResult{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, m.cfg.LockTimeout)
	fl, err := reg.LockSlot(lockCtx, cfg.Slot)
	cancel()
	if err != nil {
		return StartResult{}, err
	}
	defer reg.ReleaseSlot(fl)

	if d, ok := reg.TryLoad(ctx, cfg.Slot); ok {
		if res, ok := m.tryReuse(ctx, reg, h, d, fp); ok {
			return res, nil
		}
		m.retire(ctx, reg, h, d)
	}

	return m.startFresh(ctx, reg, h, cfg, fp)
}

// tryReuse adopts the recorded server when its fingerprint matches and it
// still answers its health checks. The bool reports whether adoption
// happened; false sends the caller down the retire-and-restart path.
func (m *Manager) tryReuse(ctx context.Context, reg *registry.Registry, h *slotHandle, d registry.Descriptor, fp string) (StartResult, bool) {
	log := Logger()

	if d.Fingerprint != fp {
		log.Info("recorded server was started with a different configuration; restarting",
			"slot", d.Slot, "recorded", d.Fingerprint, "want", fp)
		return StartResult{}, false
	}

	live, err := reg.IsLive(ctx, d)
	if !live {
		log.Info("recorded server is no longer usable; restarting",
			"slot", d.Slot, "reason", err)
		return StartResult{}, false
	}

	reg.Touch(ctx, d.Slot, time.Now())

	// Keep an in-process handle so a later Stop or configuration change can
	// stop this server directly. A handle already pointing at the recorded
	// process is kept (it may route through a child cmd or a harness);
	// anything else yields to the recorded state.
	if h.server == nil || h.server.PID() != d.PID {
		if h.server != nil {
			h.server.Release()
		}
		h.server = hosting.Adopt(d.Slot, d.BaseURL, d.PID, d.LaunchID, m.hostingConfig())
	}

	log.Info("reusing running server",
		"slot", d.Slot, "base_url", d.BaseURL, "pid", d.PID, "fingerprint", d.Fingerprint)

	return StartResult{
		BaseURL:     d.BaseURL,
		Reused:      true,
		PID:         d.PID,
		Fingerprint: d.Fingerprint,
	}, true
}

// retire stops the server a stale record points at and removes the record.
// Failures are warnings, not fatal: the slot is about to be overwritten
// either way, and a process that survives the stop attempt is caught by a
// later PurgeStale sweep.
func (m *Manager) retire(ctx context.Context, reg *registry.Registry, h *slotHandle, d registry.Descriptor) {
	log := Logger()

	// A matching in-process handle stops the server through the child cmd
	// or the delegated harness. A record written by another run only has a
	// pid to signal, and a delegated record not even that.
	switch {
	case h.server != nil && h.server.PID() == d.PID:
		stopCtx, cancel := context.WithTimeout(ctx, m.cfg.StopTimeout)
		if err := h.server.Stop(stopCtx); err != nil {
			log.Warn("failed to stop stale server; continuing",
				"slot", d.Slot, "error", err)
		}
		cancel()
		h.server = nil
	case d.PID > 0:
		if err := process.StopDetached(ctx, d.PID, m.cfg.StopGracePeriod, log); err != nil {
			log.Warn("failed to stop stale server; continuing",
				"slot", d.Slot, "pid", d.PID, "error", err)
		}
	}

	if h.server != nil {
		// Leftover handle from an older incarnation of the slot. The
		// process it pointed at was already replaced by whoever wrote the
		// current record, so only the parent-side resources are freed.
		h.server.Release()
		h.server = nil
	}

	if err := reg.Remove(ctx, d.Slot); err != nil {
		log.Warn("failed to remove stale record; continuing",
			"slot", d.Slot, "error", err)
	}
}

// startFresh launches a new server for cfg and records it. A server that
// started but cannot be recorded is stopped again before the error
// returns: an unrecorded server would escape every later reuse, stop, and
// purge decision, and its slot could then hold two live processes.
func (m *Manager) startFresh(ctx context.Context, reg *registry.Registry, h *slotHandle, cfg config.ServerConfig, fp string) (StartResult, error) {
	log := Logger()

	if h.server != nil {
		// A handle with no backing record: the registry lost it to
		// corruption quarantine or an external delete. Stop the process
		// rather than leave it running next to its replacement.
		stopCtx, cancel := context.WithTimeout(ctx, m.cfg.StopTimeout)
		if err := h.server.Stop(stopCtx); err != nil {
			log.Warn("failed to stop unrecorded server; continuing",
				"slot", cfg.Slot, "error", err)
		}
		cancel()
		h.server = nil
	}

	strategy, err := hosting.NewStrategy(cfg, m.hostingConfig())
	if err != nil {
		return StartResult{}, err
	}

	server, err := strategy.Start(ctx)
	if err != nil {
		annotate(err, fp)
		return StartResult{}, err
	}

	now := time.Now()
	d := registry.Descriptor{
		Slot:        cfg.Slot,
		LaunchID:    server.LaunchID(),
		Fingerprint: fp,
		PID:         server.PID(),
		BaseURL:     server.BaseURL(),
		HealthPaths: cfg.EffectiveHealthPaths(),
		StartedAt:   now,
		CheckedAt:   now,
	}
	if err := reg.Save(ctx, d); err != nil {
		// Deliberately not the caller's context: it may already be done,
		// and this stop must still happen.
		stopCtx, cancel := context.WithTimeout(context.Background(), m.cfg.StopTimeout)
		defer cancel()
		if stopErr := server.Stop(stopCtx); stopErr != nil {
			log.Warn("failed to stop unrecorded server",
				"slot", cfg.Slot, "pid", server.PID(), "error", stopErr)
		}
		return StartResult{}, fmt.Errorf("record started server: %w", err)
	}

	h.server = server

	log.Info("server started",
		"slot", cfg.Slot, "base_url", server.BaseURL(), "pid", server.PID(),
		"fingerprint", fp, "launch_id", server.LaunchID(), "reused", server.Reused())

	return StartResult{
		BaseURL:     server.BaseURL(),
		Reused:      server.Reused(),
		PID:         server.PID(),
		Fingerprint: fp,
	}, nil
}

// annotate fills the fingerprint into payload errors that carry one. The
// hosting layer builds these errors before the fingerprint exists.
func annotate(err error, fp string) {
	var ste *hosting.StartupTimeoutError
	if errors.As(err, &ste) {
		ste.Fingerprint = fp
	}
}

package core

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/giantswarm/appenv/internal/hosting"
	"github.com/giantswarm/appenv/internal/netutil"
	"github.com/giantswarm/appenv/internal/registry"
)

// Manager coordinates application servers for end-to-end test runs. Each
// named slot holds at most one live server; EnsureStarted reuses a running
// instance recorded by any earlier run when its configuration fingerprint
// matches, and replaces it otherwise. It is safe for concurrent use by
// multiple goroutines.
//
// Configuration is stored in the cfg field and is immutable after
// construction. Runtime state (the registry handle, per-slot server
// handles, counters) is kept in separate fields to maintain a clear
// boundary between configuration and mutable state.
//
// Synchronization strategy:
//   - slotsMu guards only the slots map. Each slotHandle carries its own
//     mutex; holding it serializes this process's operations on that slot.
//     The cross-process flock is acquired inside it, so lock ordering is
//     always map → slot → file.
//   - regMu guards lazy creation of the registry handle. The registry opens
//     on first use so construction performs no I/O; a failed open is
//     retried by the next operation instead of being cached forever.
//   - closed is an atomic flag flipped exactly once by Close. Operations
//     observe it with a single load on their fast path.
//   - counters are plain atomics; Stats reads them without locks.
type Manager struct {
	cfg ManagerConfig

	// ports coordinates dynamic port allocation across all slots this
	// process starts. Created during construction and shared via dependency
	// injection.
	ports *netutil.PortRegistry

	regMu sync.Mutex
	reg   *registry.Registry

	closed atomic.Bool

	slotsMu sync.Mutex
	slots   map[string]*slotHandle

	started atomic.Uint64
	reused  atomic.Uint64
	stopped atomic.Uint64
	failed  atomic.Uint64
}

// slotHandle is the per-slot in-process state: a mutex ordering this
// process's operations on the slot, and the handle to the server the last
// successful operation left running. The handle is how a later stop routes
// through the child cmd or the delegated harness instead of falling back
// to pid signaling.
type slotHandle struct {
	mu     sync.Mutex
	server *hosting.Server
}

// StartResult is EnsureStarted's answer: where the server is and whether it
// was already running.
type StartResult struct {
	// BaseURL is the resolved address the server answers on. For dynamic
	// port configs this carries the port that was actually assigned.
	BaseURL string

	// Reused is true when the call was satisfied by a server that existed
	// before it.
	Reused bool

	// PID is the server's operating system process id, or 0 when a
	// delegated harness owns the process model.
	PID int

	// Fingerprint is the configuration hash the server is recorded under.
	Fingerprint string
}

// Status describes what currently occupies a slot.
type Status struct {
	// Running is true when a recorded server exists and passes all of its
	// health checks right now.
	Running bool

	// BaseURL, PID, and Fingerprint mirror the recorded descriptor. They
	// are zero when the slot has no record at all.
	BaseURL     string
	PID         int
	Fingerprint string
}

// Stats is a point-in-time snapshot of the manager's operation counters.
type Stats struct {
	// Started counts servers this manager launched.
	Started uint64

	// Reused counts EnsureStarted calls satisfied by an already-running
	// server, whether found in the registry or reported by a harness.
	Reused uint64

	// Stopped counts explicit Stop teardowns. Internal restarts of stale
	// servers are not counted here.
	Stopped uint64

	// Failed counts EnsureStarted calls that returned an error.
	Failed uint64
}

// NewManagerWithConfig creates a Manager with the provided configuration.
// This performs no I/O; the registry database opens on first use.
//
// Panics if cfg.Validate() reports any errors. Invalid configuration is a
// programmer error that should be caught at construction time, similar to
// regexp.MustCompile.
func NewManagerWithConfig(cfg ManagerConfig) *Manager {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("appenv: invalid manager config: %v", err))
	}
	return &Manager{
		cfg:   cfg,
		ports: netutil.NewPortRegistry(nil),
		slots: make(map[string]*slotHandle),
	}
}

// Config returns the manager's immutable configuration.
func (m *Manager) Config() ManagerConfig {
	return m.cfg
}

// Stats returns a snapshot of the operation counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Started: m.started.Load(),
		Reused:  m.reused.Load(),
		Stopped: m.stopped.Load(),
		Failed:  m.failed.Load(),
	}
}

// Close releases this run's handles: per-slot server handles, port
// reservations, and the registry connection. It deliberately does not stop
// any server; servers are meant to outlive the run so the next invocation
// can reuse them. Use Stop for an explicit teardown.
//
// Safe to call multiple times; calls after the first return nil. Close
// waits for in-flight per-slot operations to finish by taking each slot's
// mutex before releasing its handle.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.slotsMu.Lock()
	handles := make([]*slotHandle, 0, len(m.slots))
	for _, h := range m.slots {
		handles = append(handles, h)
	}
	m.slotsMu.Unlock()

	for _, h := range handles {
		h.mu.Lock()
		if h.server != nil {
			h.server.Release()
			h.server = nil
		}
		h.mu.Unlock()
	}

	m.regMu.Lock()
	defer m.regMu.Unlock()
	if m.reg == nil {
		return nil
	}
	err := m.reg.Close()
	m.reg = nil
	return err
}

// openRegistry returns the shared registry handle, opening it on first use.
// Open failures are not cached: the next caller retries from scratch, the
// same way a failed initialization is retried rather than pinned.
func (m *Manager) openRegistry() (*registry.Registry, error) {
	m.regMu.Lock()
	defer m.regMu.Unlock()
	if m.reg != nil {
		return m.reg, nil
	}
	reg, err := registry.New(m.cfg.BaseDataDir, m.cfg.ReuseProbeTimeout, Logger())
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	m.reg = reg
	return reg, nil
}

// slot returns the in-process handle for name, creating it on first use.
func (m *Manager) slot(name string) *slotHandle {
	m.slotsMu.Lock()
	defer m.slotsMu.Unlock()
	h, ok := m.slots[name]
	if !ok {
		h = &slotHandle{}
		m.slots[name] = h
	}
	return h
}

// hostingConfig assembles the strategy-level configuration from the
// manager's. The per-request probe timeout is left to the hosting fallback;
// the manager's ReuseProbeTimeout applies only to reuse decisions, which go
// through the registry's prober.
func (m *Manager) hostingConfig() hosting.Config {
	return hosting.Config{
		DataDir:         m.cfg.BaseDataDir,
		Ports:           m.ports,
		ProbeInterval:   m.cfg.ProbeInterval,
		StartupTimeout:  m.cfg.StartupTimeout,
		StopGracePeriod: m.cfg.StopGracePeriod,
		StopTimeout:     m.cfg.StopTimeout,
		Logger:          Logger(),
	}
}

package hosting

import (
	"context"
	"log/slog"
	"time"

	"github.com/giantswarm/appenv/internal/config"
	"github.com/giantswarm/appenv/internal/netutil"
	"github.com/giantswarm/appenv/internal/process"
)

// Server is a handle to one running instance of the application under test.
// Exactly one of three shapes backs it: a child process started by this run,
// a delegated harness, or an adopted process recorded by an earlier run.
//
// Server is not safe for concurrent use; the manager serializes access per
// slot.
type Server struct {
	slot     string
	baseURL  string
	pid      int
	launchID string
	logDir   string
	reused   bool

	child   *process.Child
	orch    config.Orchestrator
	adopted bool

	ports   *netutil.PortRegistry
	dynPort int

	stopGrace   time.Duration
	stopTimeout time.Duration
	log         *slog.Logger
}

// Adopt wraps a server recorded by an earlier run into a handle. Stopping
// an adopted server signals its recorded pid; there is no cmd handle to
// wait on.
func Adopt(slot, baseURL string, pid int, launchID string, hc Config) *Server {
	hc = hc.withDefaults()
	return &Server{
		slot:      slot,
		baseURL:   baseURL,
		pid:       pid,
		launchID:  launchID,
		reused:    true,
		adopted:   true,
		stopGrace: hc.StopGracePeriod,
		log:       hc.Logger,
	}
}

// Slot returns the slot name the server belongs to.
func (s *Server) Slot() string { return s.slot }

// BaseURL returns the resolved base URL the server answers on.
func (s *Server) BaseURL() string { return s.baseURL }

// PID returns the server's process id, or 0 when the process is owned by a
// delegated harness that did not expose one.
func (s *Server) PID() int { return s.pid }

// LaunchID identifies the launch that produced this server. For servers
// started by this package it also names the log directory.
func (s *Server) LaunchID() string { return s.launchID }

// LogDir returns the directory holding the server's stdout/stderr logs, or
// "" when the launch did not capture logs (delegated, adopted).
func (s *Server) LogDir() string { return s.logDir }

// Reused reports whether this handle wraps an instance that existed before
// the call that produced it.
func (s *Server) Reused() bool { return s.reused }

// Stop terminates the server. Delegated instances are stopped through their
// harness, own children through their cmd handle, and adopted processes by
// signaling the recorded pid. Stop is idempotent: once a shape has been
// stopped successfully, further calls return nil without signaling anything.
func (s *Server) Stop(ctx context.Context) error {
	defer s.releasePort()
	switch {
	case s.orch != nil:
		if err := s.orch.Stop(ctx); err != nil {
			return err
		}
		s.orch = nil
		return nil
	case s.child != nil:
		return process.StopCloseAndNil(&s.child, s.stopTimeout)
	case s.adopted && s.pid > 0:
		if err := process.StopDetached(ctx, s.pid, s.stopGrace, s.log); err != nil {
			return err
		}
		s.pid = 0
		return nil
	}
	return nil
}

// Release drops this run's handles to the server without stopping it. The
// process keeps running for the next run to adopt; only parent-side
// resources (log file handles, the in-process port reservation) are freed.
func (s *Server) Release() {
	s.releasePort()
	if s.child != nil {
		s.child.Close()
		s.child = nil
	}
}

// releasePort frees the in-process reservation of a dynamically allocated
// port. The operating system itself keeps the port safe while the server
// holds the socket; the reservation only guarded the window between
// allocation and bind.
func (s *Server) releasePort() {
	if s.ports != nil && s.dynPort != 0 {
		s.ports.Release(s.dynPort)
		s.dynPort = 0
	}
}

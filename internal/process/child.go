package process

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrAlreadyStarted is returned when SetupAndStart is called on a Child that
// is already running. Callers must Stop the child before starting it again.
const ErrAlreadyStarted = sentinel.Error("process already started")

// ErrNilCmd is returned when SetupAndStart is called with a nil *exec.Cmd.
const ErrNilCmd = sentinel.Error("cmd must not be nil")

// ErrEmptyCmdPath is returned when SetupAndStart is called with an empty cmd.Path.
const ErrEmptyCmdPath = sentinel.Error("cmd.Path must not be empty")

// ErrEmptyLogDir is returned when SetupAndStart is called with an empty log directory.
const ErrEmptyLogDir = sentinel.Error("log directory must not be empty")

// Child manages a server process spawned by the current run.
//
// The child is placed in its own session (see configureSysProcAttr), so it
// survives the exit of this process. That is deliberate: a later run finds
// the server via the on-disk registry and reuses it instead of starting a
// fresh one. A consequence is that Close does NOT stop the child; only Stop
// terminates it.
//
// Child is not safe for concurrent use. Callers must serialize access to all
// methods. In practice the hosting strategy that owns a Child is itself
// serialized by the manager's per-slot lock.
type Child struct {
	cmd         *exec.Cmd
	waitDone    <-chan error    // receives cmd.Wait result; started once in SetupAndStart
	exited      <-chan struct{} // closed when the process exits; readable by multiple goroutines
	logFiles    LogFiles
	name        string
	log         *slog.Logger
	stopTimeout time.Duration
}

// NewChild creates a Child with the given name, logger, and stop timeout.
// The stopTimeout bounds how long Stop waits for the process tree to exit;
// zero falls back to DefaultStopTimeout. If logger is nil, slog.Default()
// is used. Panics if name is empty, since the name is woven into log file
// names and error messages throughout the lifecycle.
func NewChild(name string, logger *slog.Logger, stopTimeout time.Duration) Child {
	if name == "" {
		panic("appenv: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Child{name: name, log: logger, stopTimeout: stopTimeout}
}

// SetupAndStart creates log files, wires stdout/stderr, detaches the child
// into its own session, and starts the command. The cmd must already have
// its Path, Args, Dir, and Env set; SetupAndStart never touches the working
// directory or environment because those belong to the server configuration,
// not to process plumbing.
//
// A single goroutine calling cmd.Wait is started here so that exactly one
// Wait call is made per process. The resulting channel is consumed by Stop.
//
// Returns ErrAlreadyStarted if the child is already running.
func (c *Child) SetupAndStart(cmd *exec.Cmd, logDir string) error {
	if cmd == nil {
		return ErrNilCmd
	}
	if cmd.Path == "" {
		return ErrEmptyCmdPath
	}
	if logDir == "" {
		return ErrEmptyLogDir
	}
	if c.cmd != nil {
		return ErrAlreadyStarted
	}

	configureSysProcAttr(cmd)

	logFiles, err := StartCmd(cmd, logDir, c.name)
	if err != nil {
		return fmt.Errorf("start command: %w", err)
	}
	c.cmd = cmd
	c.logFiles = logFiles

	// Start the single cmd.Wait goroutine. cmd.Wait must be called exactly
	// once per started process; a second call is undefined behavior and may
	// block indefinitely. Starting the goroutine here guarantees the
	// invariant, reaps the child promptly when it exits while this run is
	// still alive, and provides a done channel for Stop.
	//
	// Two channels are created:
	//   - done (buffered 1): receives the Wait error, consumed once by Stop.
	//   - exited (unbuffered, closed): broadcast signal readable by any
	//     number of goroutines (e.g., WaitReady polling loops) to detect
	//     early exit.
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		done <- cmd.Wait()
		close(exited)
	}()
	c.waitDone = done
	c.exited = exited

	return nil
}

// Stop terminates the process tree with the given timeout, escalating from
// SIGTERM to SIGKILL. Zero or negative timeout falls back to the stop
// timeout configured in NewChild, then to DefaultStopTimeout.
//
// After Stop returns, IsStarted reports false regardless of whether the stop
// succeeded, because the process is no longer in a known-running state.
// Safe to call when the child was never started or already stopped; returns
// nil immediately in those cases.
func (c *Child) Stop(timeout time.Duration) error {
	if c.cmd == nil || c.cmd.Process == nil {
		c.cmd = nil
		c.waitDone = nil
		c.exited = nil
		return nil
	}
	if timeout <= 0 {
		timeout = c.stopTimeout
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	pid := c.cmd.Process.Pid
	err := stopWithDone(c.cmd, c.waitDone, timeout, c.name)
	if err != nil {
		c.log.Warn("process stop failed; process may be orphaned",
			"process", c.name, "pid", pid, "error", err)
	}
	c.cmd = nil
	c.waitDone = nil
	c.exited = nil
	return err
}

// Close releases the parent-side log file handles. A still-running child is
// left running: the detached session exists precisely so the server can
// outlive this run and be adopted by the next one. Callers that want the
// process gone must call Stop first.
//
// The child keeps writing to the log files through its own inherited
// descriptors; only this process's handles are closed.
func (c *Child) Close() {
	if c.cmd != nil && c.cmd.Process != nil {
		c.log.Debug("releasing process without stopping it",
			"process", c.name, "pid", c.cmd.Process.Pid)
	}
	c.logFiles.Close()
}

// PID returns the operating system process id of the running child, or 0 if
// the child has not been started or has been stopped.
func (c *Child) PID() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Exited returns a channel that is closed when the process exits. It is safe
// to select on from any number of goroutines. Returns nil if the process has
// not been started or has already been stopped.
func (c *Child) Exited() <-chan struct{} {
	return c.exited
}

// IsStarted reports whether the child has been started and not yet stopped.
func (c *Child) IsStarted() bool {
	return c.cmd != nil
}

// TailLogs returns the trailing portion of the child's stdout and stderr
// logs, capped at maxBytes per stream. Intended for embedding diagnostic
// output in startup failure errors.
func (c *Child) TailLogs(maxBytes int64) string {
	return c.logFiles.Tail(maxBytes)
}

// Logger returns the logger used by this child.
func (c *Child) Logger() *slog.Logger {
	return c.log
}

package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrInvalidPID is returned by StopDetached when the pid is not positive.
// Signaling pid 0 or a negative pid would target this process's own group.
const ErrInvalidPID = sentinel.Error("pid must be positive")

// DefaultStopTimeout is the default timeout for stopping a process. It is
// used as a fallback by the hosting and registry layers when no explicit
// stop timeout is configured.
const DefaultStopTimeout = 10 * time.Second

// termGracePeriod is the maximum time to wait for a process to exit after
// SIGTERM before escalating to SIGKILL. The actual grace period is capped
// at the overall timeout.
const termGracePeriod = 5 * time.Second

// killDrainTimeout is the hard upper bound for waiting on process exit
// after SIGKILL has been sent (or after the process has already exited).
// SIGKILL cannot be caught, so the process should exit almost immediately.
// This timeout is a safety net against indefinite blocking if cmd.Wait
// never returns (e.g., due to stuck I/O or kernel issues).
const killDrainTimeout = 10 * time.Second

// stopPollInterval is the interval at which StopDetached re-checks whether
// a signaled process has exited.
const stopPollInterval = 50 * time.Millisecond

// drainDone reads from the done channel with the given timeout as a hard
// upper bound. Under normal conditions cmd.Wait returns almost immediately
// after the process exits, so this timeout should never fire. It exists
// purely as a safety net to prevent indefinite blocking if cmd.Wait hangs.
//
// Returns true and the cmd.Wait error if the channel delivered in time,
// or false and a nil error if the timeout elapsed.
func drainDone(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// stopWithDone implements the SIGTERM-then-SIGKILL shutdown sequence for a
// child started by this run, using a pre-existing done channel that already
// has a goroutine calling cmd.Wait. This avoids spawning a second cmd.Wait
// goroutine, which would be undefined behavior. The done channel must
// receive the result of exactly one cmd.Wait call.
//
// Signals are delivered to the child's process group so that anything the
// server spawned (build tool wrappers, worker processes) dies with it.
//
// Shutdown flow:
//  1. Send SIGTERM to the group for graceful shutdown.
//  2. Schedule SIGKILL via time.AfterFunc after a grace period (canceled if
//     the process exits first).
//  3. Wait for process exit or total timeout.
//
// stopWithDone does not nil cmd or the done channel. The caller is
// responsible for clearing those references after stopWithDone returns so
// that subsequent calls (and IsStarted checks) see the process as stopped.
//
// Worst-case blocking duration is timeout + killDrainTimeout. Callers
// sizing their own deadlines should account for the additional drain
// window beyond the configured timeout.
func stopWithDone(cmd *exec.Cmd, done <-chan error, timeout time.Duration, name string) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if done == nil {
		return fmt.Errorf("%s: done channel must not be nil", name)
	}
	pid := cmd.Process.Pid

	// Send SIGTERM to the group for graceful shutdown.
	if err := signalGroup(pid, syscall.SIGTERM); err != nil {
		// Process already exited; drain the wait goroutine with a hard
		// upper bound to avoid blocking indefinitely.
		ok, waitErr := drainDone(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out draining process after signal failure", name)
		}
		return expectSignalExit(waitErr, name)
	}

	// Schedule SIGKILL after the grace period. If the process exits before
	// the grace period, killTimer.Stop() cancels the escalation.
	//
	// grace is clamped to timeout so SIGKILL always fires before the total
	// timeout expires. This guarantees the process receives a kill signal
	// while totalTimer is still running, giving drainDone a window to
	// collect the exit status rather than hitting the timeout path.
	grace := min(termGracePeriod, timeout)
	killTimer := time.AfterFunc(grace, func() {
		// Killing an already-exited process reports "no such process",
		// which is harmless and intentionally discarded.
		_ = signalGroup(pid, syscall.SIGKILL)
	})
	// killTimer.Stop cancels the pending SIGKILL before this function
	// returns. The defer guarantees the timer is canceled on all exit paths.
	defer killTimer.Stop()

	// Wait for process exit or total timeout.
	totalTimer := time.NewTimer(timeout)
	defer totalTimer.Stop()

	select {
	case err := <-done:
		return expectSignalExit(err, name)
	case <-totalTimer.C:
		ok, waitErr := drainDone(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out waiting for process to exit after SIGKILL", name)
		}
		if err := expectSignalExit(waitErr, name); err != nil {
			return fmt.Errorf("%s stop timeout: %w", name, err)
		}
		return nil
	}
}

// expectSignalExit interprets an error from cmd.Wait after sending a
// termination signal. Exit errors caused by SIGTERM or SIGKILL are expected
// and treated as successful stops.
func expectSignalExit(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			sig := status.Signal()
			if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
				return nil
			}
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}

// StopDetached terminates a process that was recorded by an earlier run.
// There is no *exec.Cmd handle and no wait goroutine for such a process
// (its original parent is gone), so exit is detected by polling Alive
// rather than by draining cmd.Wait.
//
// The sequence mirrors stopWithDone: SIGTERM to the process group, wait up
// to grace for the process to disappear, then SIGKILL and wait up to
// killDrainTimeout. Returns nil if the process is already gone. Zero or
// negative grace falls back to termGracePeriod.
func StopDetached(ctx context.Context, pid int, grace time.Duration, log *slog.Logger) error {
	if pid <= 0 {
		return ErrInvalidPID
	}
	if log == nil {
		log = slog.Default()
	}
	if grace <= 0 {
		grace = termGracePeriod
	}
	if !Alive(pid) {
		return nil
	}

	if err := signalGroup(pid, syscall.SIGTERM); err != nil {
		// The process can exit between the Alive check and the signal.
		if !Alive(pid) {
			return nil
		}
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	waitGone := func(timeout time.Duration) error {
		return wait.PollUntilContextTimeout(ctx, stopPollInterval, timeout, true,
			func(context.Context) (bool, error) {
				return !Alive(pid), nil
			})
	}

	if err := waitGone(grace); err == nil {
		return nil
	}

	log.Warn("process ignored SIGTERM; escalating to SIGKILL", "pid", pid)
	if err := signalGroup(pid, syscall.SIGKILL); err != nil && Alive(pid) {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	if err := waitGone(killDrainTimeout); err != nil {
		return fmt.Errorf("pid %d still alive after SIGKILL: %w", pid, err)
	}
	return nil
}

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func TestExpectSignalExit(t *testing.T) {
	t.Parallel()

	type testCase struct {
		err     error
		signal  syscall.Signal
		wantErr bool
	}

	tests := map[string]testCase{
		"nil error returns nil": {
			wantErr: false,
		},
		"SIGTERM exit is expected": {
			signal:  syscall.SIGTERM,
			wantErr: false,
		},
		"SIGKILL exit is expected": {
			signal:  syscall.SIGKILL,
			wantErr: false,
		},
		"other signal is unexpected": {
			signal:  syscall.SIGINT,
			wantErr: true,
		},
		"non-ExitError is unexpected": {
			err:     errors.New("some other error"),
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			inputErr := tc.err
			if inputErr == nil && tc.signal != 0 {
				inputErr = makeSignalExitError(t, tc.signal)
			}

			got := expectSignalExit(inputErr, "test-proc")

			if tc.wantErr && got == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && got != nil {
				t.Fatalf("expected nil, got %v", got)
			}
		})
	}
}

func TestExpectSignalExit_WrapsProcessName(t *testing.T) {
	t.Parallel()

	err := expectSignalExit(errors.New("connection refused"), "my-proc")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := err.Error(); got != "my-proc: connection refused" {
		t.Errorf("error = %q, want %q", got, "my-proc: connection refused")
	}
}

func TestDrainDone_ReceivesValue(t *testing.T) {
	t.Parallel()

	done := make(chan error, 1)
	done <- nil

	ok, err := drainDone(done, time.Second)
	if !ok {
		t.Fatal("expected ok=true when channel has a value")
	}
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestDrainDone_ReceivesError(t *testing.T) {
	t.Parallel()

	done := make(chan error, 1)
	want := errors.New("process crashed")
	done <- want

	ok, err := drainDone(done, time.Second)
	if !ok {
		t.Fatal("expected ok=true when channel has a value")
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestDrainDone_TimesOutOnEmpty(t *testing.T) {
	t.Parallel()

	done := make(chan error) // unbuffered, never written to

	ok, err := drainDone(done, 10*time.Millisecond)
	if ok {
		t.Fatal("expected ok=false when timeout elapses")
	}
	if err != nil {
		t.Fatalf("expected nil error on timeout, got %v", err)
	}
}

func TestAlive(t *testing.T) {
	t.Parallel()

	if !Alive(os.Getpid()) {
		t.Error("our own pid should be alive")
	}
	if Alive(0) {
		t.Error("pid 0 should not report alive")
	}
	if Alive(-1) {
		t.Error("negative pid should not report alive")
	}
}

func TestStopDetached_InvalidPID(t *testing.T) {
	t.Parallel()

	for _, pid := range []int{0, -5} {
		err := StopDetached(context.Background(), pid, time.Second, nil)
		if !errors.Is(err, ErrInvalidPID) {
			t.Errorf("StopDetached(%d) = %v, want %v", pid, err, ErrInvalidPID)
		}
	}
}

func TestStopDetached_AlreadyGone(t *testing.T) {
	t.Parallel()

	// Run a process to completion so its pid is known to be free.
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("test setup: run true: %v", err)
	}
	pid := cmd.Process.Pid

	start := time.Now()
	if err := StopDetached(context.Background(), pid, 5*time.Second, nil); err != nil {
		t.Fatalf("StopDetached on exited pid should return nil, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected fast return for exited pid, took %v", elapsed)
	}
}

// TestStopDetached_TerminatesProcess signals a live process the way a later
// run would signal a server recorded by an earlier one: by pid, without a
// cmd handle or wait channel.
func TestStopDetached_TerminatesProcess(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sleep", "60")
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("test setup: start sleep: %v", err)
	}
	pid := cmd.Process.Pid
	// This test process is still the parent, so the child must be reaped for
	// Alive to go false. A detached server from a real earlier run has no
	// living parent and is reaped by init.
	go func() { _ = cmd.Wait() }()

	if err := StopDetached(context.Background(), pid, 5*time.Second, nil); err != nil {
		t.Fatalf("StopDetached() error: %v", err)
	}
	if Alive(pid) {
		t.Error("process should be gone after StopDetached")
	}
}

// TestStopDetached_EscalatesToKill verifies that a process ignoring SIGTERM
// is removed by the SIGKILL escalation.
func TestStopDetached_EscalatesToKill(t *testing.T) {
	t.Parallel()

	cmd := exec.Command("sh", "-c", `trap "" TERM; while :; do sleep 1; done`)
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("test setup: start sh: %v", err)
	}
	pid := cmd.Process.Pid
	go func() { _ = cmd.Wait() }()

	if err := StopDetached(context.Background(), pid, 300*time.Millisecond, nil); err != nil {
		t.Fatalf("StopDetached() error: %v", err)
	}
	if Alive(pid) {
		t.Error("process should be gone after SIGKILL escalation")
	}
}

// makeSignalExitError creates an *exec.ExitError with the given signal.
// It uses a real process to generate an authentic WaitStatus.
// Calls t.Fatalf if the process cannot be started, signaled, or does not
// produce an ExitError, since all conditions indicate a broken test
// environment.
func makeSignalExitError(tb testing.TB, sig syscall.Signal) *exec.ExitError {
	tb.Helper()

	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		tb.Fatalf("test setup: start sleep: %v", err)
	}

	if err := cmd.Process.Signal(sig); err != nil {
		// Kill the process to avoid leaking it, then fail.
		_ = cmd.Process.Kill() // best-effort cleanup
		tb.Fatalf("test setup: signal process with %v: %v", sig, err)
	}

	err := cmd.Wait()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		tb.Fatalf("test setup: expected *exec.ExitError from signaled process, got %v", err)
	}

	return exitErr
}

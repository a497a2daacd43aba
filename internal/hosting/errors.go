package hosting

import (
	"fmt"
	"time"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrStartupTimeout matches any StartupTimeoutError via errors.Is.
const ErrStartupTimeout = sentinel.Error("server did not become ready before the startup timeout")

// ErrLaunchFailed matches any LaunchError via errors.Is.
const ErrLaunchFailed = sentinel.Error("server process failed to launch")

// StartupTimeoutError reports a server that started but never passed its
// health checks within the allowed time. Output carries the tail of the
// server's stdout and stderr so the test failure message itself shows what
// the server last said. Fingerprint is filled in by the manager, which is
// the layer that knows it.
type StartupTimeoutError struct {
	Slot        string
	Fingerprint string
	Timeout     time.Duration
	Output      string
}

func (e *StartupTimeoutError) Error() string {
	msg := fmt.Sprintf("server %q did not become ready within %s", e.Slot, e.Timeout)
	if e.Fingerprint != "" {
		msg += fmt.Sprintf(" (fingerprint %s)", e.Fingerprint)
	}
	if e.Output != "" {
		msg += "; captured output:\n" + e.Output
	}
	return msg
}

// Unwrap lets errors.Is(err, ErrStartupTimeout) match.
func (e *StartupTimeoutError) Unwrap() error {
	return ErrStartupTimeout
}

// LaunchError reports a server that could not be launched at all, or that
// exited before ever becoming ready. Output, when present, carries the tail
// of whatever the process wrote before dying.
type LaunchError struct {
	Slot   string
	Output string
	Err    error
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("launch server %q: %v", e.Slot, e.Err)
	if e.Output != "" {
		msg += "\ncaptured output:\n" + e.Output
	}
	return msg
}

// Unwrap exposes both the ErrLaunchFailed marker and the underlying cause,
// so errors.Is works against either.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Err}
}

package appenv

import "github.com/giantswarm/appenv/internal/core"

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrInvalidConfig is returned by EnsureStarted when the server config
	// fails validation. The returned error wraps the individual field
	// violations alongside this sentinel.
	ErrInvalidConfig = core.ErrInvalidConfig

	// ErrManagerClosed is returned by all Manager operations after Close.
	ErrManagerClosed = core.ErrManagerClosed

	// ErrSlotContended is returned by EnsureStarted when another process
	// held a slot's cross-process lock for the entire lock timeout.
	ErrSlotContended = core.ErrSlotContended

	// ErrStartupTimeout is returned (wrapped in a *StartupTimeoutError)
	// when a started server never passes its health checks within the
	// startup timeout.
	ErrStartupTimeout = core.ErrStartupTimeout

	// ErrLaunchFailed is returned (wrapped in a *LaunchError) when a
	// server cannot be spawned at all, or exits before becoming healthy.
	ErrLaunchFailed = core.ErrLaunchFailed
)

// StartupTimeoutError reports a server that was launched but never became
// healthy. It carries the slot, the config fingerprint, the timeout that
// elapsed, and a tail of the captured server output, so a cold-start
// failure in CI is diagnosable without re-running. Matches both
// errors.As(*StartupTimeoutError) and errors.Is(err, ErrStartupTimeout).
//
// StartupTimeoutError is a type alias (not a named type) so values created
// in internal packages satisfy errors.As against the public name.
type StartupTimeoutError = core.StartupTimeoutError

// LaunchError reports a server that could not be spawned, or that exited
// before becoming healthy. Matches both errors.As(*LaunchError) and
// errors.Is(err, ErrLaunchFailed), and unwraps to the underlying cause.
//
// LaunchError is a type alias for the same reason as [StartupTimeoutError].
type LaunchError = core.LaunchError

package process

import (
	"time"
)

// Stoppable is a process handle that can be stopped and have its resources
// released.
type Stoppable interface {
	Stop(timeout time.Duration) error
	Close()
}

// StopCloseAndNil stops, closes, and nils a Stoppable pointer in a single
// cleanup step. It is safe to call with a nil p or when *p is nil; in both
// cases it returns nil immediately.
//
// The two type parameters enforce a pointer-type constraint at compile time:
// P must be both *E and Stoppable, so only pointer types that implement
// Stoppable can be passed, and *E is always directly comparable to nil
// without reflection. Callers never specify E explicitly; the compiler
// derives it from the pointer type.
//
// Close and nil-out always run even when Stop returns an error, because a
// failed Stop leaves the process in an unknown state and the file handles
// and stale reference must not outlive it. The Stop error is still returned.
//
// Usage:
//
//	var child *process.Child
//	// ... start child ...
//	err := process.StopCloseAndNil(&child, 10*time.Second)
//
// After the call, child is nil regardless of whether Stop succeeded.
func StopCloseAndNil[P interface {
	*E
	Stoppable
}, E any](p *P, timeout time.Duration) error {
	if p == nil || *p == nil {
		return nil
	}
	defer func() {
		(*p).Close()
		*p = nil
	}()
	return (*p).Stop(timeout)
}

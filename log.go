package appenv

import (
	"log/slog"

	"github.com/giantswarm/appenv/internal/core"
)

// SetLogger replaces the package-level logger used by appenv.
// This allows applications to integrate appenv logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; appenv will not add additional attributes.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next use and then cached.
// Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Thread safety: SetLogger is safe to call concurrently with other appenv
// operations. Both the custom logger and the cached default are stored as
// atomic pointers, so loads and stores are data-race-free. A concurrent
// log call during SetLogger always sees a valid *slog.Logger, though it
// may briefly use the previous logger until both atomic stores complete.
// For a strict happens-before guarantee, call SetLogger before starting
// goroutines that use the library (e.g., in TestMain before m.Run).
//
// Example:
//
//	appenv.SetLogger(myLogger.With("component", "appenv"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}

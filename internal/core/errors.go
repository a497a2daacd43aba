package core

import (
	"github.com/giantswarm/appenv/internal/hosting"
	"github.com/giantswarm/appenv/internal/registry"
	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrInvalidConfig is returned by EnsureStarted when the server config
// fails validation. The wrapped error joins every field violation.
const ErrInvalidConfig = sentinel.Error("invalid server config")

// ErrManagerClosed is returned by every operation called after Close.
const ErrManagerClosed = sentinel.Error("manager is closed")

// ErrSlotContended is re-exported from registry so the public API imports
// only from core, preserving the layering: public API → core → registry.
// It matches when a slot's cross-process lock could not be acquired within
// the lock timeout.
const ErrSlotContended = registry.ErrLockNotAcquired

// ErrStartupTimeout is re-exported from hosting so the public API imports
// only from core, preserving the layering: public API → core → hosting.
const ErrStartupTimeout = hosting.ErrStartupTimeout

// ErrLaunchFailed is re-exported from hosting so the public API imports
// only from core, preserving the layering: public API → core → hosting.
const ErrLaunchFailed = hosting.ErrLaunchFailed

// StartupTimeoutError is the payload type behind ErrStartupTimeout,
// aliased so callers can errors.As against the core package alone.
type StartupTimeoutError = hosting.StartupTimeoutError

// LaunchError is the payload type behind ErrLaunchFailed, aliased so
// callers can errors.As against the core package alone.
type LaunchError = hosting.LaunchError

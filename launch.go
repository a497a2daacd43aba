package appenv

import "github.com/giantswarm/appenv/internal/config"

// LaunchKind selects the mechanism that starts and stops a server slot.
// See the individual constant documentation for details on each kind's
// behavior and trade-offs.
//
// LaunchKind is a type alias (not a named type) so that the underlying
// [config.LaunchKind] methods are part of the public API:
//
//   - IsValid reports whether the value is a recognized kind.
//   - String returns the kind name (implements [fmt.Stringer]).
//   - UnmarshalYAML decodes the config-file tokens "direct"/"delegated".
//
// This is intentional: callers can validate and print kind values, and
// decode config files, without the public package needing to redeclare
// these methods.
//
// Audit: new methods added to config.LaunchKind automatically become part
// of the public API through this alias.
type LaunchKind = config.LaunchKind

const (
	// LaunchDirect spawns an OS process from the configured command,
	// captures its output to per-launch log files, and polls the health
	// endpoints itself. The process is detached from the test run so
	// later runs can reuse it. This is the default kind.
	LaunchDirect = config.LaunchDirect

	// LaunchDelegated hands the lifecycle to an external test-hosting
	// harness supplied via ServerConfig.Orchestrator. The harness owns
	// the process model; configuration reaches it through APPENV_*
	// environment variables and the resolved endpoint is read back from
	// its result. The harness's readiness signal is authoritative.
	LaunchDelegated = config.LaunchDelegated
)

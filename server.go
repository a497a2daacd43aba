package appenv

import "github.com/giantswarm/appenv/internal/config"

// ServerConfig describes one application-under-test server: its slot name,
// base URL, launch mechanism, command line or orchestrator, environment
// overrides, and health endpoints. It is treated as an immutable value and
// must not be modified after being passed to EnsureStarted.
//
// ServerConfig is a type alias (not a named type) so the struct can flow
// between the public API and internal packages unconverted. See
// [config.ServerConfig] for field documentation.
//
// Audit: new methods added to config.ServerConfig automatically become
// part of the public API through this alias.
type ServerConfig = config.ServerConfig

// EnvVar is one environment-variable override in a ServerConfig. Overrides
// are ordered; when the same name appears more than once, the last
// occurrence wins.
//
// EnvVar is a type alias for the same reason as [ServerConfig].
type EnvVar = config.EnvVar

// Orchestrator is the external test-hosting harness a LaunchDelegated slot
// hands its lifecycle to. Start must block until the harness's target is
// running or ctx is done; Stop must be idempotent. See
// [config.Orchestrator] for the environment-variable contract.
//
// Orchestrator is a type alias so harness implementations written against
// the public name satisfy the internal interface directly.
type Orchestrator = config.Orchestrator

// OrchestratorResult is what a delegated harness reports once its target is
// running: the resolved base URL and whether an already-running instance
// was served.
//
// OrchestratorResult is a type alias for the same reason as [Orchestrator].
type OrchestratorResult = config.OrchestratorResult

// ConfigFile is a parsed declarative config file mapping slot names to
// server configurations. Use Lookup to fetch one entry with its slot name
// filled in.
//
// ConfigFile is a type alias for [config.File].
type ConfigFile = config.File

// LoadConfigFile reads and parses a YAML config file of the form:
//
//	servers:
//	  storefront:
//	    base_url: http://127.0.0.1:0
//	    command: bin/storefront
//	    args: ["--listen", "{baseUrl}"]
//	    health_paths: ["/healthz"]
//	    startup_timeout: 90s
//
// The map key becomes each entry's slot name. Entries are validated lazily,
// at EnsureStarted, so a file may carry delegated slots whose orchestrators
// are attached programmatically after loading.
func LoadConfigFile(path string) (*ConfigFile, error) {
	return config.LoadFile(path)
}

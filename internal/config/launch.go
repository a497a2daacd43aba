package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LaunchKind selects the mechanism that starts and stops a server slot.
type LaunchKind int

const (
	// LaunchDirect spawns an OS process from the configured command,
	// captures its output, and polls the health endpoints itself. The
	// process is detached from the test run so later runs can reuse it.
	// This is the default kind.
	LaunchDirect LaunchKind = iota

	// LaunchDelegated hands the lifecycle to an external test-hosting
	// harness supplied via ServerConfig.Orchestrator. The harness owns the
	// process/resource model; configuration reaches it through process
	// environment variables and the resolved endpoint is read back from
	// its result. The harness's readiness signal is authoritative.
	LaunchDelegated
)

// IsValid reports whether k is a recognized LaunchKind value.
func (k LaunchKind) IsValid() bool {
	switch k {
	case LaunchDirect, LaunchDelegated:
		return true
	default:
		return false
	}
}

// String returns the kind name.
func (k LaunchKind) String() string {
	switch k {
	case LaunchDirect:
		return "LaunchDirect"
	case LaunchDelegated:
		return "LaunchDelegated"
	default:
		return fmt.Sprintf("LaunchKind(%d)", int(k))
	}
}

// launchKindTokens maps YAML tokens to LaunchKind values. The empty token
// defaults to direct so minimal config files stay minimal.
var launchKindTokens = map[string]LaunchKind{
	"":          LaunchDirect,
	"direct":    LaunchDirect,
	"delegated": LaunchDelegated,
}

// UnmarshalYAML decodes a LaunchKind from its config-file token
// ("direct" or "delegated"; empty defaults to direct).
func (k *LaunchKind) UnmarshalYAML(value *yaml.Node) error {
	var token string
	if err := value.Decode(&token); err != nil {
		return fmt.Errorf("decode launch kind: %w", err)
	}
	kind, ok := launchKindTokens[token]
	if !ok {
		return fmt.Errorf("unknown launch kind %q (want \"direct\" or \"delegated\")", token)
	}
	*k = kind
	return nil
}

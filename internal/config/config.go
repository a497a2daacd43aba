package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// slotNameRE constrains slot names to filesystem-safe tokens: slot names key
// lock files, log directories, and registry rows, so they must never contain
// path separators or shell-hostile characters.
var slotNameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// EnvVar is one environment-variable override. Overrides are ordered;
// when the same name appears more than once, the last occurrence wins.
type EnvVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// OrchestratorResult is what a delegated harness reports once its target
// resource is running.
type OrchestratorResult struct {
	// BaseURL is the resolved endpoint of the application under test, as
	// known to the harness. It overrides the configured base URL.
	BaseURL string

	// Reused reports whether the harness served an already-running
	// instance instead of creating a new one.
	Reused bool
}

// Orchestrator is the external test-hosting harness a delegated slot hands
// its lifecycle to. The harness owns its own process/resource model; this
// system only supplies configuration (through process environment
// variables, exported before Start is invoked) and reads back the result.
//
// Start must block until the harness's target resource is running or ctx is
// done. Stop must be idempotent.
type Orchestrator interface {
	Start(ctx context.Context) (OrchestratorResult, error)
	Stop(ctx context.Context) error
}

// ServerConfig describes one application-under-test server. It is treated
// as an immutable value: the manager copies what it needs and never mutates
// the caller's struct or slices.
//
// Concurrency contract: a ServerConfig must not be modified after being
// passed to EnsureStarted.
type ServerConfig struct {
	// Slot is the logical identity of "one instance of the application
	// under test", independent of its configuration fingerprint. When the
	// config is loaded from a YAML file, the map key fills this field.
	Slot string `yaml:"-"`

	// BaseURL is where the server is expected to serve, e.g.
	// "http://127.0.0.1:8173". A port of 0 requests a kernel-assigned
	// port; see the package documentation for the {port} placeholder.
	BaseURL string `yaml:"base_url"`

	// Launch selects the hosting mechanism. Default: LaunchDirect.
	Launch LaunchKind `yaml:"launch"`

	// Dir is the working directory (project path) the server runs from.
	Dir string `yaml:"dir"`

	// BuildTarget is an optional build/target descriptor passed through to
	// the fingerprint and, for delegated slots, to the harness environment.
	BuildTarget string `yaml:"build_target"`

	// Command and Args form the command line for direct launches.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// Env holds ordered environment overrides, applied last-write-wins on
	// top of framework defaults (delegated) or the parent environment
	// (direct).
	Env []EnvVar `yaml:"env"`

	// HealthPaths are the endpoint paths probed for readiness, e.g.
	// "/healthz". Empty defaults to probing "/". Any 2xx or 3xx response
	// counts as healthy.
	HealthPaths []string `yaml:"health_paths"`

	// StartupTimeout bounds how long a cold start may take before the
	// launch is abandoned and the process killed. Zero means the manager
	// default applies. In config files this is a duration string
	// ("90s"), decoded by LoadFile rather than directly by yaml.
	StartupTimeout time.Duration `yaml:"-"`

	// Orchestrator is required when Launch is LaunchDelegated and must be
	// attached programmatically; it cannot come from a config file.
	Orchestrator Orchestrator `yaml:"-"`
}

// Validate checks all ServerConfig invariants and returns an error
// describing every violation found, using errors.Join so callers can fix
// all problems in one pass.
func (c ServerConfig) Validate() error {
	var errs []error

	if c.Slot == "" {
		errs = append(errs, errors.New("slot name must not be empty"))
	} else if !slotNameRE.MatchString(c.Slot) {
		errs = append(errs, fmt.Errorf("slot name %q must match %s", c.Slot, slotNameRE.String()))
	}

	if c.BaseURL == "" {
		errs = append(errs, errors.New("base URL must not be empty"))
	} else if _, err := parseBaseURL(c.BaseURL); err != nil {
		errs = append(errs, err)
	}

	if !c.Launch.IsValid() {
		errs = append(errs, fmt.Errorf("invalid launch kind: %v", c.Launch))
	}
	switch c.Launch {
	case LaunchDirect:
		if c.Command == "" {
			errs = append(errs, errors.New("command must not be empty for direct launch"))
		}
	case LaunchDelegated:
		if c.Orchestrator == nil {
			errs = append(errs, errors.New("orchestrator must not be nil for delegated launch"))
		}
	}

	for _, p := range c.HealthPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("health path %q must start with /", p))
		}
	}

	for _, ev := range c.Env {
		if ev.Name == "" {
			errs = append(errs, errors.New("environment override name must not be empty"))
		}
	}

	if c.StartupTimeout < 0 {
		errs = append(errs, fmt.Errorf("startup timeout must not be negative, got %s", c.StartupTimeout))
	}

	return errors.Join(errs...)
}

// parseBaseURL parses and sanity-checks a base URL.
func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q: scheme must be http or https", raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("base URL %q: host must not be empty", raw)
	}
	return u, nil
}

// NormalizedBaseURL returns the canonical form used for fingerprinting:
// lowercase scheme and host, trailing slash stripped. The config must have
// passed Validate.
func (c ServerConfig) NormalizedBaseURL() (string, error) {
	u, err := parseBaseURL(c.BaseURL)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/"), nil
}

// WantsDynamicPort reports whether the base URL requests a kernel-assigned
// port (port 0). Invalid URLs report false; Validate catches them first.
func (c ServerConfig) WantsDynamicPort() bool {
	u, err := parseBaseURL(c.BaseURL)
	if err != nil {
		return false
	}
	return u.Port() == "0"
}

// WithPort returns a copy of the config whose base URL carries the given
// port, with the {port} and {baseUrl} placeholders in args and env values
// expanded. Used by the manager after dynamic port allocation.
func (c ServerConfig) WithPort(port int) (ServerConfig, error) {
	u, err := parseBaseURL(c.BaseURL)
	if err != nil {
		return ServerConfig{}, err
	}
	u.Host = fmt.Sprintf("%s:%d", u.Hostname(), port)

	out := c
	out.BaseURL = u.String()

	expand := strings.NewReplacer(
		"{port}", fmt.Sprintf("%d", port),
		"{baseUrl}", out.BaseURL,
	)
	if len(c.Args) > 0 {
		out.Args = make([]string, len(c.Args))
		for i, a := range c.Args {
			out.Args[i] = expand.Replace(a)
		}
	}
	if len(c.Env) > 0 {
		out.Env = make([]EnvVar, len(c.Env))
		for i, ev := range c.Env {
			out.Env[i] = EnvVar{Name: ev.Name, Value: expand.Replace(ev.Value)}
		}
	}
	return out, nil
}

// MergedEnv collapses the ordered overrides last-write-wins into a map.
func (c ServerConfig) MergedEnv() map[string]string {
	merged := make(map[string]string, len(c.Env))
	for _, ev := range c.Env {
		merged[ev.Name] = ev.Value
	}
	return merged
}

// SortedEnvNames returns the merged override names in lexicographic order.
// Fingerprinting and child-environment assembly both need a deterministic
// iteration order.
func SortedEnvNames(merged map[string]string) []string {
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizedDir returns the cleaned absolute form of the working directory,
// or the empty string when no directory is configured.
func (c ServerConfig) NormalizedDir() (string, error) {
	if c.Dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(filepath.Clean(c.Dir))
	if err != nil {
		return "", fmt.Errorf("normalize dir %q: %w", c.Dir, err)
	}
	return abs, nil
}

// EffectiveHealthPaths returns the configured health paths, defaulting to
// probing the root path when none are configured.
func (c ServerConfig) EffectiveHealthPaths() []string {
	if len(c.HealthPaths) == 0 {
		return []string{"/"}
	}
	return c.HealthPaths
}

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// stubOrchestrator satisfies Orchestrator for validation tests.
type stubOrchestrator struct{}

func (stubOrchestrator) Start(context.Context) (OrchestratorResult, error) {
	return OrchestratorResult{}, errors.New("not implemented")
}
func (stubOrchestrator) Stop(context.Context) error { return nil }

// validDirectConfig returns a minimal valid direct-launch config that tests
// mutate per case.
func validDirectConfig() ServerConfig {
	return ServerConfig{
		Slot:        "storefront",
		BaseURL:     "http://127.0.0.1:8173",
		Launch:      LaunchDirect,
		Command:     "bin/storefront",
		HealthPaths: []string{"/healthz"},
	}
}

// TestServerConfig_Validate exercises every validation rule, valid and
// invalid, and verifies that multiple violations are reported together.
func TestServerConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate  func(*ServerConfig)
		wantErr string // substring; empty means valid
	}{
		"valid direct": {
			mutate: func(*ServerConfig) {},
		},
		"valid delegated": {
			mutate: func(c *ServerConfig) {
				c.Launch = LaunchDelegated
				c.Command = ""
				c.Orchestrator = stubOrchestrator{}
			},
		},
		"empty slot": {
			mutate:  func(c *ServerConfig) { c.Slot = "" },
			wantErr: "slot name must not be empty",
		},
		"slot with path separator": {
			mutate:  func(c *ServerConfig) { c.Slot = "a/b" },
			wantErr: "must match",
		},
		"slot starting with dot": {
			mutate:  func(c *ServerConfig) { c.Slot = ".hidden" },
			wantErr: "must match",
		},
		"empty base URL": {
			mutate:  func(c *ServerConfig) { c.BaseURL = "" },
			wantErr: "base URL must not be empty",
		},
		"ftp scheme": {
			mutate:  func(c *ServerConfig) { c.BaseURL = "ftp://127.0.0.1:21" },
			wantErr: "scheme must be http or https",
		},
		"missing host": {
			mutate:  func(c *ServerConfig) { c.BaseURL = "http://" },
			wantErr: "host must not be empty",
		},
		"invalid launch kind": {
			mutate:  func(c *ServerConfig) { c.Launch = LaunchKind(42) },
			wantErr: "invalid launch kind",
		},
		"direct without command": {
			mutate:  func(c *ServerConfig) { c.Command = "" },
			wantErr: "command must not be empty",
		},
		"delegated without orchestrator": {
			mutate: func(c *ServerConfig) {
				c.Launch = LaunchDelegated
				c.Orchestrator = nil
			},
			wantErr: "orchestrator must not be nil",
		},
		"health path without slash": {
			mutate:  func(c *ServerConfig) { c.HealthPaths = []string{"healthz"} },
			wantErr: "must start with /",
		},
		"empty env override name": {
			mutate:  func(c *ServerConfig) { c.Env = []EnvVar{{Name: "", Value: "x"}} },
			wantErr: "environment override name must not be empty",
		},
		"negative startup timeout": {
			mutate:  func(c *ServerConfig) { c.StartupTimeout = -time.Second },
			wantErr: "startup timeout must not be negative",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := validDirectConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

// TestServerConfig_ValidateReportsAllViolations verifies the errors.Join
// behavior: independent violations surface in one error.
func TestServerConfig_ValidateReportsAllViolations(t *testing.T) {
	t.Parallel()

	cfg := ServerConfig{Slot: "", BaseURL: "", Launch: LaunchDirect, Command: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want joined errors")
	}
	for _, want := range []string{"slot name", "base URL", "command"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err, want)
		}
	}
}

// TestNormalizedBaseURL verifies scheme/host lowercasing and trailing-slash
// stripping.
func TestNormalizedBaseURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want string
	}{
		"already canonical": {in: "http://127.0.0.1:8173", want: "http://127.0.0.1:8173"},
		"uppercase scheme":  {in: "HTTP://127.0.0.1:8173", want: "http://127.0.0.1:8173"},
		"uppercase host":    {in: "http://LOCALHOST:8173", want: "http://localhost:8173"},
		"trailing slash":    {in: "http://localhost:8173/", want: "http://localhost:8173"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := validDirectConfig()
			cfg.BaseURL = tc.in
			got, err := cfg.NormalizedBaseURL()
			if err != nil {
				t.Fatalf("NormalizedBaseURL() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("NormalizedBaseURL() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestWantsDynamicPort verifies port-0 detection.
func TestWantsDynamicPort(t *testing.T) {
	t.Parallel()

	cfg := validDirectConfig()
	if cfg.WantsDynamicPort() {
		t.Error("fixed port reported as dynamic")
	}

	cfg.BaseURL = "http://127.0.0.1:0"
	if !cfg.WantsDynamicPort() {
		t.Error("port 0 not reported as dynamic")
	}

	cfg.BaseURL = "http://127.0.0.1"
	if cfg.WantsDynamicPort() {
		t.Error("absent port reported as dynamic")
	}
}

// TestWithPort verifies URL rewriting and placeholder expansion in args and
// env values, and that the original config is left untouched.
func TestWithPort(t *testing.T) {
	t.Parallel()

	cfg := validDirectConfig()
	cfg.BaseURL = "http://127.0.0.1:0"
	cfg.Args = []string{"--listen", "{baseUrl}", "--port", "{port}"}
	cfg.Env = []EnvVar{{Name: "APP_URL", Value: "{baseUrl}"}}

	resolved, err := cfg.WithPort(9321)
	if err != nil {
		t.Fatalf("WithPort() error: %v", err)
	}

	if resolved.BaseURL != "http://127.0.0.1:9321" {
		t.Errorf("BaseURL = %q, want rewritten port", resolved.BaseURL)
	}
	if resolved.Args[1] != "http://127.0.0.1:9321" || resolved.Args[3] != "9321" {
		t.Errorf("Args = %v, want placeholders expanded", resolved.Args)
	}
	if resolved.Env[0].Value != "http://127.0.0.1:9321" {
		t.Errorf("Env = %v, want placeholder expanded", resolved.Env)
	}

	// Original slices must be untouched.
	if cfg.Args[1] != "{baseUrl}" || cfg.Env[0].Value != "{baseUrl}" {
		t.Error("WithPort mutated the original config")
	}
}

// TestMergedEnv verifies last-write-wins merging and deterministic name
// ordering.
func TestMergedEnv(t *testing.T) {
	t.Parallel()

	cfg := validDirectConfig()
	cfg.Env = []EnvVar{
		{Name: "APP_MODE", Value: "first"},
		{Name: "ZED", Value: "z"},
		{Name: "APP_MODE", Value: "second"},
	}

	merged := cfg.MergedEnv()
	if merged["APP_MODE"] != "second" {
		t.Errorf("APP_MODE = %q, want last-write-wins %q", merged["APP_MODE"], "second")
	}
	if len(merged) != 2 {
		t.Errorf("merged size = %d, want 2", len(merged))
	}

	names := SortedEnvNames(merged)
	if len(names) != 2 || names[0] != "APP_MODE" || names[1] != "ZED" {
		t.Errorf("SortedEnvNames() = %v, want lexicographic order", names)
	}
}

// TestNormalizedDir verifies relative paths become cleaned absolute paths
// and an empty dir stays empty.
func TestNormalizedDir(t *testing.T) {
	t.Parallel()

	cfg := validDirectConfig()
	cfg.Dir = "./services//api/"

	got, err := cfg.NormalizedDir()
	if err != nil {
		t.Fatalf("NormalizedDir() error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("NormalizedDir() = %q, want absolute path", got)
	}
	if strings.Contains(got, "//") || strings.HasSuffix(got, "/") {
		t.Errorf("NormalizedDir() = %q, want cleaned path", got)
	}

	cfg.Dir = ""
	got, err = cfg.NormalizedDir()
	if err != nil || got != "" {
		t.Errorf("NormalizedDir() on empty dir = (%q, %v), want empty", got, err)
	}
}

// TestEffectiveHealthPaths verifies the root-path default.
func TestEffectiveHealthPaths(t *testing.T) {
	t.Parallel()

	cfg := validDirectConfig()
	cfg.HealthPaths = nil
	if got := cfg.EffectiveHealthPaths(); len(got) != 1 || got[0] != "/" {
		t.Errorf("EffectiveHealthPaths() = %v, want [/]", got)
	}

	cfg.HealthPaths = []string{"/healthz", "/ready"}
	if got := cfg.EffectiveHealthPaths(); len(got) != 2 {
		t.Errorf("EffectiveHealthPaths() = %v, want configured paths", got)
	}
}

// TestLaunchKind covers IsValid and String for all values plus the
// out-of-range case.
func TestLaunchKind(t *testing.T) {
	t.Parallel()

	if !LaunchDirect.IsValid() || !LaunchDelegated.IsValid() {
		t.Error("defined kinds must be valid")
	}
	if LaunchKind(99).IsValid() {
		t.Error("out-of-range kind must be invalid")
	}

	if got := LaunchDirect.String(); got != "LaunchDirect" {
		t.Errorf("String() = %q, want LaunchDirect", got)
	}
	if got := LaunchDelegated.String(); got != "LaunchDelegated" {
		t.Errorf("String() = %q, want LaunchDelegated", got)
	}
	if got := LaunchKind(99).String(); got != "LaunchKind(99)" {
		t.Errorf("String() = %q, want LaunchKind(99)", got)
	}
}

package hosting

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/appenv/internal/config"
	"github.com/giantswarm/appenv/internal/envguard"
	"github.com/giantswarm/appenv/internal/probe"
)

// Environment variables through which a delegated harness receives its
// configuration. They are exported before Orchestrator.Start and restored
// to their previous values afterwards.
const (
	// EnvSlot carries the slot name.
	EnvSlot = "APPENV_SLOT"

	// EnvBaseURL carries the base URL the server is expected to serve on.
	EnvBaseURL = "APPENV_BASE_URL"

	// EnvProjectDir carries the project directory, when configured.
	EnvProjectDir = "APPENV_PROJECT_DIR"

	// EnvBuildTarget carries the build target, when configured.
	EnvBuildTarget = "APPENV_BUILD_TARGET"
)

// delegatedEnvMu serializes delegated starts process-wide. The handoff
// protocol mutates the process environment, which is global state; two
// concurrent delegated starts would read each other's variables.
var delegatedEnvMu sync.Mutex

// Delegated hands the server lifecycle to an external harness and passes
// configuration through process environment variables.
type Delegated struct {
	cfg config.ServerConfig
	hc  Config
}

// NewDelegated creates a Delegated strategy. The server config must have
// passed Validate, which guarantees a non-nil Orchestrator.
func NewDelegated(cfg config.ServerConfig, hc Config) *Delegated {
	return &Delegated{cfg: cfg, hc: hc.withDefaults()}
}

var _ Strategy = (*Delegated)(nil)

// Start exports the handoff environment, invokes the harness, and restores
// the environment whether or not the harness succeeded. The harness owns
// readiness but gets at most the startup timeout to report it; a follow-up
// health probe is best-effort and only logged.
func (g *Delegated) Start(ctx context.Context) (*Server, error) {
	cfg := g.cfg
	log := g.hc.Logger

	baseURL, err := cfg.NormalizedBaseURL()
	if err != nil {
		return nil, &LaunchError{Slot: cfg.Slot, Err: err}
	}
	projectDir, err := cfg.NormalizedDir()
	if err != nil {
		return nil, &LaunchError{Slot: cfg.Slot, Err: err}
	}

	startCtx, cancel := context.WithTimeout(ctx, g.startupTimeout())
	defer cancel()

	result, err := g.runHarness(startCtx, baseURL, projectDir)
	if err != nil {
		return nil, &LaunchError{Slot: cfg.Slot, Err: err}
	}

	resolved := baseURL
	if result.BaseURL != "" {
		// The harness knows better than the config where the server
		// actually landed.
		resolved = strings.TrimSuffix(result.BaseURL, "/")
	}

	// The harness has declared the server running; verify reachability but
	// do not fail on it. Some harnesses front the server with auth or
	// warm-up behavior this probe cannot see through.
	prober := probe.NewProber(g.hc.ProbeRequestTimeout, log)
	defer prober.Close()
	if err := prober.CheckAll(ctx, resolved, cfg.EffectiveHealthPaths()); err != nil {
		log.Warn("delegated server is not answering health probes; continuing anyway",
			"slot", cfg.Slot, "base_url", resolved, "error", err)
	}

	log.Info("server delegated", "slot", cfg.Slot, "base_url", resolved, "reused", result.Reused)

	return &Server{
		slot:     cfg.Slot,
		baseURL:  resolved,
		launchID: uuid.NewString(),
		reused:   result.Reused,
		orch:     cfg.Orchestrator,
		log:      log,
	}, nil
}

// startupTimeout returns the per-server override when set, otherwise the
// manager default.
func (g *Delegated) startupTimeout() time.Duration {
	if g.cfg.StartupTimeout > 0 {
		return g.cfg.StartupTimeout
	}
	return g.hc.StartupTimeout
}

// runHarness performs the environment handoff around Orchestrator.Start.
// The environment snapshot is restored on every path, and the process-wide
// lock is held for the whole export-start-restore window.
func (g *Delegated) runHarness(ctx context.Context, baseURL, projectDir string) (config.OrchestratorResult, error) {
	cfg := g.cfg

	delegatedEnvMu.Lock()
	defer delegatedEnvMu.Unlock()

	keys := []string{EnvSlot, EnvBaseURL, EnvProjectDir, EnvBuildTarget}
	for _, ev := range cfg.Env {
		keys = append(keys, ev.Name)
	}
	guard := envguard.Capture(keys...)
	defer func() {
		if err := guard.Restore(); err != nil {
			g.hc.Logger.Warn("failed to restore environment after delegated start",
				"slot", cfg.Slot, "error", err)
		}
	}()

	if err := g.exportEnv(baseURL, projectDir); err != nil {
		return config.OrchestratorResult{}, err
	}

	return cfg.Orchestrator.Start(ctx)
}

// exportEnv sets the handoff variables: protocol variables first, then the
// configured overrides in declaration order, so a user override of a
// protocol variable wins.
func (g *Delegated) exportEnv(baseURL, projectDir string) error {
	cfg := g.cfg

	pairs := [][2]string{
		{EnvSlot, cfg.Slot},
		{EnvBaseURL, baseURL},
	}
	if projectDir != "" {
		pairs = append(pairs, [2]string{EnvProjectDir, projectDir})
	}
	if cfg.BuildTarget != "" {
		pairs = append(pairs, [2]string{EnvBuildTarget, cfg.BuildTarget})
	}
	for _, ev := range cfg.Env {
		pairs = append(pairs, [2]string{ev.Name, ev.Value})
	}

	for _, pair := range pairs {
		if err := os.Setenv(pair[0], pair[1]); err != nil {
			return fmt.Errorf("export %s: %w", pair[0], err)
		}
	}
	return nil
}

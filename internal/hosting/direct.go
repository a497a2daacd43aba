package hosting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/appenv/internal/config"
	"github.com/giantswarm/appenv/internal/fileutil"
	"github.com/giantswarm/appenv/internal/probe"
	"github.com/giantswarm/appenv/internal/process"
)

// Direct spawns the configured command as a detached child process and
// waits for its health endpoints to answer.
type Direct struct {
	cfg config.ServerConfig
	hc  Config
}

// NewDirect creates a Direct strategy. The server config must have passed
// Validate.
func NewDirect(cfg config.ServerConfig, hc Config) *Direct {
	return &Direct{cfg: cfg, hc: hc.withDefaults()}
}

var _ Strategy = (*Direct)(nil)

// Start launches the server and blocks until it answers on every health
// path or the startup timeout expires. On success the returned Server owns
// a running, verified child. On failure the child is stopped and the error
// carries the tail of its output.
func (d *Direct) Start(ctx context.Context) (*Server, error) {
	cfg := d.cfg
	log := d.hc.Logger

	// A base URL with port 0 asks for a kernel-assigned port. Resolve it
	// now and expand the {port}/{baseUrl} placeholders so the command line
	// and environment carry the real address.
	dynPort := 0
	if cfg.WantsDynamicPort() {
		port, err := d.hc.Ports.AllocatePort()
		if err != nil {
			return nil, &LaunchError{Slot: cfg.Slot, Err: err}
		}
		dynPort = port
		cfg, err = cfg.WithPort(port)
		if err != nil {
			d.hc.Ports.Release(port)
			return nil, &LaunchError{Slot: d.cfg.Slot, Err: err}
		}
	}
	releaseOnFailure := func() {
		if dynPort != 0 {
			d.hc.Ports.Release(dynPort)
		}
	}

	baseURL, err := cfg.NormalizedBaseURL()
	if err != nil {
		releaseOnFailure()
		return nil, &LaunchError{Slot: cfg.Slot, Err: err}
	}
	workDir, err := cfg.NormalizedDir()
	if err != nil {
		releaseOnFailure()
		return nil, &LaunchError{Slot: cfg.Slot, Err: err}
	}

	launchID := uuid.NewString()
	logDir := filepath.Join(d.hc.DataDir, "logs", cfg.Slot, launchID)
	if err := fileutil.EnsureDir(logDir); err != nil {
		releaseOnFailure()
		return nil, &LaunchError{Slot: cfg.Slot, Err: fmt.Errorf("create log directory: %w", err)}
	}

	// Deliberately not CommandContext: the child must outlive this call's
	// context, and stopping is the Server handle's job.
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = workDir
	cmd.Env = buildEnv(cfg)

	c := process.NewChild(cfg.Slot, log, d.hc.StopTimeout)
	child := &c
	if err := child.SetupAndStart(cmd, logDir); err != nil {
		releaseOnFailure()
		return nil, &LaunchError{Slot: cfg.Slot, Err: err}
	}

	log.Info("server starting",
		"slot", cfg.Slot, "pid", child.PID(), "base_url", baseURL, "logs", logDir)

	if err := d.waitHealthy(ctx, child, baseURL); err != nil {
		output := child.TailLogs(outputTailBytes)
		if stopErr := process.StopCloseAndNil(&child, d.hc.StopTimeout); stopErr != nil {
			log.Warn("failed to stop server after startup failure",
				"slot", cfg.Slot, "error", stopErr)
		}
		releaseOnFailure()

		if errors.Is(err, process.ErrProcessExited) {
			return nil, &LaunchError{Slot: cfg.Slot, Output: output, Err: err}
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("start server %q: %w", cfg.Slot, err)
		}
		return nil, &StartupTimeoutError{Slot: cfg.Slot, Timeout: d.startupTimeout(), Output: output}
	}

	log.Info("server ready", "slot", cfg.Slot, "pid", child.PID(), "base_url", baseURL)

	return &Server{
		slot:        cfg.Slot,
		baseURL:     baseURL,
		pid:         child.PID(),
		launchID:    launchID,
		logDir:      logDir,
		child:       child,
		ports:       d.hc.Ports,
		dynPort:     dynPort,
		stopGrace:   d.hc.StopGracePeriod,
		stopTimeout: d.hc.StopTimeout,
		log:         log,
	}, nil
}

// waitHealthy polls every health path until all answer or the startup
// timeout expires. A child exit aborts the wait immediately.
func (d *Direct) waitHealthy(ctx context.Context, child *process.Child, baseURL string) error {
	log := d.hc.Logger
	prober := probe.NewProber(d.hc.ProbeRequestTimeout, log)
	defer prober.Close()

	paths := d.cfg.EffectiveHealthPaths()
	return process.WaitReady(ctx, process.WaitReadyConfig{
		Interval:      d.hc.ProbeInterval,
		Timeout:       d.startupTimeout(),
		Name:          d.cfg.Slot,
		Target:        baseURL,
		Logger:        log,
		ProcessExited: child.Exited(),
	}, func(checkCtx context.Context, attempt int) (bool, error) {
		if err := prober.CheckAll(checkCtx, baseURL, paths); err != nil {
			if log.Enabled(checkCtx, slog.LevelDebug) {
				log.Debug("startup probe attempt",
					"slot", d.cfg.Slot, "attempt", attempt, "error", err)
			}
			return false, nil
		}
		return true, nil
	})
}

// startupTimeout returns the per-server override when set, otherwise the
// manager default.
func (d *Direct) startupTimeout() time.Duration {
	if d.cfg.StartupTimeout > 0 {
		return d.cfg.StartupTimeout
	}
	return d.hc.StartupTimeout
}

// buildEnv assembles the child environment: the parent environment with
// the configured overrides appended. os/exec resolves duplicate names to
// the last occurrence, so appending implements the override semantics.
// Overrides are appended in sorted-name order for reproducible spawns.
func buildEnv(cfg config.ServerConfig) []string {
	env := os.Environ()
	merged := cfg.MergedEnv()
	for _, name := range config.SortedEnvNames(merged) {
		env = append(env, name+"="+merged[name])
	}
	return env
}

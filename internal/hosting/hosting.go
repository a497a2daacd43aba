package hosting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/appenv/internal/config"
	"github.com/giantswarm/appenv/internal/netutil"
)

// Fallbacks for Config fields left at their zero value. The manager
// normally fills every field from its own validated configuration; these
// exist so the package stays usable on its own.
const (
	fallbackProbeInterval  = 250 * time.Millisecond
	fallbackStartupTimeout = 5 * time.Minute
	fallbackProbeTimeout   = 5 * time.Second
)

// outputTailBytes caps how much of each output stream a startup failure
// carries. Enough for a stack trace and the surrounding log lines without
// flooding the test log.
const outputTailBytes int64 = 8 * 1024

// Config carries the manager-level knobs shared by all strategies.
type Config struct {
	// DataDir is the shared data directory; process logs go to
	// DataDir/logs/<slot>/<launch id>/.
	DataDir string

	// Ports hands out kernel-assigned ports for base URLs requesting
	// port 0. Required for direct strategies with dynamic ports.
	Ports *netutil.PortRegistry

	// ProbeInterval is the delay between consecutive startup health polls.
	ProbeInterval time.Duration

	// ProbeRequestTimeout bounds each individual health request.
	ProbeRequestTimeout time.Duration

	// StartupTimeout bounds a cold start when the server config does not
	// set its own.
	StartupTimeout time.Duration

	// StopGracePeriod is how long a signaled process gets between SIGTERM
	// and SIGKILL when stopped by pid.
	StopGracePeriod time.Duration

	// StopTimeout bounds a full stop of a child started by this run.
	StopTimeout time.Duration

	// Logger receives operational messages. Nil means slog.Default().
	Logger *slog.Logger
}

// withDefaults returns a copy of c with zero fields replaced by fallbacks.
func (c Config) withDefaults() Config {
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = fallbackProbeInterval
	}
	if c.ProbeRequestTimeout <= 0 {
		c.ProbeRequestTimeout = fallbackProbeTimeout
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = fallbackStartupTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Ports == nil {
		c.Ports = netutil.NewPortRegistry(c.Logger)
	}
	return c
}

// Strategy starts a fresh server for one slot. Implementations block until
// the server is usable (direct) or the harness reports success (delegated).
type Strategy interface {
	Start(ctx context.Context) (*Server, error)
}

// NewStrategy selects the strategy for the config's launch kind. The config
// must have passed Validate.
func NewStrategy(cfg config.ServerConfig, hc Config) (Strategy, error) {
	switch cfg.Launch {
	case config.LaunchDirect:
		return NewDirect(cfg, hc), nil
	case config.LaunchDelegated:
		return NewDelegated(cfg, hc), nil
	default:
		return nil, fmt.Errorf("unsupported launch kind: %v", cfg.Launch)
	}
}

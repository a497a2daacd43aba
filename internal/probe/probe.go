package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/appenv/internal/sentinel"
)

// ErrUnhealthyStatus is returned when a health endpoint answers with a
// status outside the 2xx/3xx range. Match with errors.Is to distinguish an
// unhealthy response from a transport failure.
const ErrUnhealthyStatus = sentinel.Error("health endpoint returned non-success status")

// DefaultRequestTimeout is the per-request timeout used when NewProber is
// called with a non-positive timeout.
const DefaultRequestTimeout = 5 * time.Second

// Prober issues HTTP GET health checks. A zero Prober is not usable; create
// one with NewProber. Prober is safe for concurrent use.
type Prober struct {
	client *http.Client
	log    *slog.Logger
}

// NewProber creates a Prober whose requests are bounded by timeout. If
// timeout is not positive, DefaultRequestTimeout is used. If logger is nil,
// slog.Default() is used.
func NewProber(timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		client: &http.Client{
			Transport: &http.Transport{
				// InsecureSkipVerify is safe here because this is a testing
				// helper that only talks to a developer-run server on
				// localhost. Such servers commonly use self-signed
				// certificates with no CA to verify against.
				//nolint:gosec // G402: InsecureSkipVerify is appropriate for a test helper
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},

				// DisableKeepAlives ensures each health-check request opens
				// a fresh connection that is closed immediately after the
				// response is read. Without this, the transport accumulates
				// idle connections across rapid polling attempts, especially
				// when early attempts fail because the server is not yet
				// listening.
				DisableKeepAlives: true,
			},
			// A redirect from a health path already proves the server is up
			// and routing requests. Following it could leave localhost or
			// hit auth walls, so the first response is the verdict.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Timeout: timeout,
		},
		log: logger,
	}
}

// Close releases any idle connections held by the underlying transport.
func (p *Prober) Close() {
	p.client.CloseIdleConnections()
}

// Check issues a single GET against url and returns nil when the response
// status is in the 2xx/3xx range. Transport failures and non-success
// statuses are returned as errors; ErrUnhealthyStatus is wrapped for the
// latter so callers can tell the two apart.
func (p *Prober) Check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	// Drain and close the response body so the underlying connection is
	// properly released.
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) // best-effort drain
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return fmt.Errorf("GET %s: status %d: %w", url, resp.StatusCode, ErrUnhealthyStatus)
}

// CheckAll probes every health path under baseURL concurrently and returns
// nil only when all of them pass. The first failure cancels the remaining
// probes and is returned.
func (p *Prober) CheckAll(ctx context.Context, baseURL string, paths []string) error {
	if len(paths) == 0 {
		return p.Check(ctx, baseURL)
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for _, path := range paths {
		url := JoinURL(baseURL, path)
		g.Go(func() error {
			return p.Check(groupCtx, url)
		})
	}
	return g.Wait()
}

// JoinURL appends a health path to a base URL without doubling the slash
// between them. The path is expected to start with "/", which config
// validation guarantees.
func JoinURL(baseURL, path string) string {
	return strings.TrimSuffix(baseURL, "/") + path
}

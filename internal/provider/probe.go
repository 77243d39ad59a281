package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vdem-gis/outage-etl/internal/config"
)

// Prober discovers a currently valid data endpoint for a provider by issuing
// lightweight existence checks against candidate URLs, in order, until one
// answers with a success status.
type Prober struct {
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
}

// NewProber creates a Prober with a per-attempt timeout and a bounded
// attempt budget.
func NewProber(timeout time.Duration, maxAttempts int, logger *slog.Logger) *Prober {
	return &Prober{
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// Discover instantiates the provider's URL template with each candidate date
// string and returns the first URL that responds 2xx, plus the number of
// attempts made. Returns ErrEndpointNotFound once candidates or the attempt
// budget are exhausted.
func (p *Prober) Discover(ctx context.Context, def config.ProviderDefinition, candidates []string) (string, int, error) {
	attempts := 0
	for _, date := range candidates {
		if attempts >= p.maxAttempts {
			break
		}
		if ctx.Err() != nil {
			return "", attempts, ctx.Err()
		}

		url := strings.ReplaceAll(def.URLTemplate, "{date}", date)
		attempts++

		ok, err := p.exists(ctx, url)
		if err != nil {
			p.logger.Debug("probe attempt failed", "provider", def.ID, "url", url, "error", err)
			continue
		}
		if ok {
			return url, attempts, nil
		}
	}
	return "", attempts, ErrEndpointNotFound
}

// exists issues a HEAD request, falling back to GET when the server rejects
// HEAD. The body is discarded either way.
func (p *Prober) exists(ctx context.Context, url string) (bool, error) {
	status, err := p.statusOf(ctx, http.MethodHead, url)
	if err != nil {
		return false, err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = p.statusOf(ctx, http.MethodGet, url)
		if err != nil {
			return false, err
		}
	}
	return status >= 200 && status < 300, nil
}

func (p *Prober) statusOf(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Fetcher retrieves raw payload bodies from validated endpoints with a
// bounded timeout and a small retry budget. Transport failures are retried;
// HTTP error statuses are not — the endpoint answered, retrying won't change
// the answer.
type Fetcher struct {
	client  *http.Client
	logger  *slog.Logger
	retries int
}

// NewFetcher creates a Fetcher. retries is the number of additional attempts
// after the first, applied only to transport-level failures.
func NewFetcher(timeout time.Duration, retries int, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		retries: retries,
	}
}

// Fetch downloads the full response body from url. It returns the body, the
// number of retries used, and an error once the budget is exhausted or a
// non-success status is received.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, int, error) {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			f.logger.Debug("retrying fetch", "url", url, "attempt", attempt)
			if !sleepWithContext(ctx, backoff) {
				return nil, attempt - 1, ctx.Err()
			}
			backoff *= 2
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, attempt, nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, attempt, err
		}
		lastErr = err
	}

	return nil, f.retries, &FetchError{URL: url, Err: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return io.ReadAll(resp.Body)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

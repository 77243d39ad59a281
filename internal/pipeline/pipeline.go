// Package pipeline orchestrates one collection run: every configured
// provider walks its probe-fetch-parse state machine independently, the
// results join at the aggregator, and the finished snapshot is handed to the
// publisher. A provider failing, hanging, or serving garbage never blocks
// the others.
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
	"github.com/vdem-gis/outage-etl/internal/observability"
	"github.com/vdem-gis/outage-etl/internal/provider"
)

// EndpointProber discovers a currently valid data URL for a provider.
type EndpointProber interface {
	Discover(ctx context.Context, def config.ProviderDefinition, candidates []string) (url string, attempts int, err error)
}

// PayloadFetcher retrieves the raw body from a validated URL.
type PayloadFetcher interface {
	Fetch(ctx context.Context, url string) (body []byte, retries int, err error)
}

// SnapshotPublisher hands a finished run result to the output sinks.
type SnapshotPublisher interface {
	Publish(ctx context.Context, result domain.RunResult) error
}

// Stages of the per-provider state machine, used in failure reasons.
const (
	stageProbe = "probe"
	stageFetch = "fetch"
	stageParse = "parse"
)

// Runner executes collection runs.
type Runner struct {
	defs      []config.ProviderDefinition
	norm      *domain.Normalizer
	prober    EndpointProber
	fetcher   PayloadFetcher
	publisher SnapshotPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ceiling   time.Duration
}

// New creates a Runner. ceiling bounds how long any single provider may
// occupy its pipeline before the run proceeds without it.
func New(defs []config.ProviderDefinition, norm *domain.Normalizer, prober EndpointProber, fetcher PayloadFetcher, publisher SnapshotPublisher, logger *slog.Logger, metrics *observability.Metrics, ceiling time.Duration) *Runner {
	return &Runner{
		defs:      defs,
		norm:      norm,
		prober:    prober,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		ceiling:   ceiling,
	}
}

// Run executes one complete collection run and publishes the snapshot. The
// returned error covers publishing only; provider failures are reported in
// the RunResult, never raised.
func (r *Runner) Run(ctx context.Context) (domain.RunResult, error) {
	start := time.Now()
	runTS := domain.Now()
	runID := uuid.NewString()

	r.logger.Info("run started", "run_id", runID, "run_timestamp", runTS, "providers", len(r.defs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		records  []domain.OutageRecord
		outcomes []domain.ProviderOutcome
	)

	for _, def := range r.defs {
		wg.Add(1)
		go func(def config.ProviderDefinition) {
			defer wg.Done()

			pctx, cancel := context.WithTimeout(ctx, r.ceiling)
			defer cancel()

			outcome, recs := r.collectProvider(pctx, def, runTS)

			mu.Lock()
			outcomes = append(outcomes, outcome)
			records = append(records, recs...)
			mu.Unlock()
		}(def)
	}
	wg.Wait()

	// Deterministic report order regardless of goroutine completion order.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Provider < outcomes[j].Provider })

	agg := domain.Aggregate(records)
	for _, c := range agg.Conflicts {
		r.logger.Warn("duplicate locality in payload, keeping later entry",
			"provider", c.Provider, "locality", c.LocalityKey)
		r.metrics.AggregationConflicts.Inc()
	}

	result := domain.RunResult{
		RunID:        runID,
		RunTimestamp: runTS,
		Outcomes:     outcomes,
		Snapshot:     agg.Snapshot,
		Conflicts:    len(agg.Conflicts),
	}

	totalOut := 0
	for _, row := range agg.Snapshot.ByLocality {
		totalOut += row.CustomersOut
	}
	r.metrics.LocalitiesReported.Set(float64(len(agg.Snapshot.ByLocality)))
	r.metrics.CustomersOut.Set(float64(totalOut))

	pubErr := r.publisher.Publish(ctx, result)

	r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("run finished",
		"run_id", runID,
		"providers_ok", result.SucceededCount(),
		"providers_failed", len(result.FailedProviders()),
		"localities", len(agg.Snapshot.ByLocality),
		"customers_out", totalOut,
		"duration", time.Since(start),
	)

	return result, pubErr
}

// collectProvider walks one provider through probe → fetch → parse and
// returns its terminal outcome. Every failure is contained here.
func (r *Runner) collectProvider(ctx context.Context, def config.ProviderDefinition, runTS time.Time) (domain.ProviderOutcome, []domain.OutageRecord) {
	start := time.Now()
	defer func() {
		r.metrics.ProviderDuration.WithLabelValues(def.ID).Observe(time.Since(start).Seconds())
	}()

	fail := func(stage string, err error) (domain.ProviderOutcome, []domain.OutageRecord) {
		r.logger.Warn("provider failed", "provider", def.ID, "stage", stage, "error", err)
		r.metrics.ProviderOutcomes.WithLabelValues(def.ID, string(domain.StatusFailed)).Inc()
		return domain.ProviderOutcome{
			Provider: def.ID,
			Status:   domain.StatusFailed,
			Reason:   stage + ": " + err.Error(),
		}, nil
	}

	// Probe. Static endpoints skip discovery.
	url := def.StaticURL
	if url == "" {
		candidates, err := provider.CandidateDateStrings(runTS, def.DateRules)
		if err != nil {
			return fail(stageProbe, err)
		}
		found, attempts, err := r.prober.Discover(ctx, def, candidates)
		r.metrics.ProbeAttempts.WithLabelValues(def.ID).Add(float64(attempts))
		if err != nil {
			return fail(stageProbe, err)
		}
		url = found
	}

	// Fetch.
	body, retries, err := r.fetcher.Fetch(ctx, url)
	r.metrics.FetchRetries.WithLabelValues(def.ID).Add(float64(retries))
	if err != nil {
		return fail(stageFetch, err)
	}

	// Parse.
	res, err := provider.ParsePayload(def, body, r.norm, runTS)
	if err != nil {
		return fail(stageParse, err)
	}

	r.metrics.RecordsParsed.WithLabelValues(def.ID).Add(float64(len(res.Records)))
	r.metrics.RecordDecodeErrors.WithLabelValues(def.ID).Add(float64(res.Skipped))

	status := domain.StatusSucceeded
	if res.Skipped > 0 {
		status = domain.StatusPartial
		r.logger.Warn("provider partially succeeded",
			"provider", def.ID, "records", len(res.Records), "skipped", res.Skipped)
	}
	r.metrics.ProviderOutcomes.WithLabelValues(def.ID, string(status)).Inc()

	r.logger.Info("provider collected",
		"provider", def.ID, "url", url, "records", len(res.Records), "skipped", res.Skipped)

	return domain.ProviderOutcome{
		Provider:       def.ID,
		Status:         status,
		EndpointURL:    url,
		Records:        len(res.Records),
		SkippedRecords: res.Skipped,
	}, res.Records
}

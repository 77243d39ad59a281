// Command collector performs one outage collection run: it discovers each
// provider's current data endpoint, fetches and parses the payloads,
// aggregates the canonical views, and publishes the snapshot to the
// configured sinks. It is invoked on a fifteen-minute schedule by an
// external trigger.
//
// The process exits non-zero only when zero providers produced data (or
// configuration failed to load), so schedulers alert on total failure rather
// than partial degradation.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
	"github.com/vdem-gis/outage-etl/internal/observability"
	"github.com/vdem-gis/outage-etl/internal/pipeline"
	"github.com/vdem-gis/outage-etl/internal/provider"
	"github.com/vdem-gis/outage-etl/internal/sink"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load() // best effort; env vars win

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	providers, err := config.LoadProviders(cfg.ProvidersPath)
	if err != nil {
		logger.Error("failed to load providers config", "error", err)
		return 1
	}

	norm := domain.NewNormalizer(providers.Localities)
	prober := provider.NewProber(cfg.ProbeTimeout, cfg.ProbeAttempts, logger)
	fetcher := provider.NewFetcher(cfg.FetchTimeout, cfg.FetchRetries, logger)

	sinks := []sink.Sink{sink.NewCSVSink(cfg.CSVPath, logger)}
	var featureWriter *sink.FeatureWriter
	if cfg.KafkaEnabled {
		featureWriter = sink.NewFeatureWriter(cfg, logger)
		sinks = append(sinks, featureWriter)
	} else {
		logger.Info("feature-store publishing disabled")
	}
	publisher := sink.NewPublisher(logger, sinks...)

	runner := pipeline.New(providers.Providers, norm, prober, fetcher, publisher, logger, metrics, cfg.ProviderCeiling)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, pubErr := runner.Run(ctx)
	if pubErr != nil {
		logger.Error("snapshot publishing degraded", "error", pubErr)
	}

	for _, o := range result.Outcomes {
		logger.Info("provider outcome",
			"provider", o.Provider,
			"status", o.Status,
			"records", o.Records,
			"skipped", o.SkippedRecords,
			"reason", o.Reason,
		)
	}

	if featureWriter != nil {
		if err := featureWriter.Close(); err != nil {
			logger.Error("feature writer close error", "error", err)
		}
	}

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(cfg.PushgatewayURL, cfg.MetricsJob); err != nil {
			logger.Error("metrics push failed", "error", err)
		}
	}

	if result.SucceededCount() == 0 {
		logger.Error("no provider produced data this run")
		return 1
	}
	return 0
}

// Package sink is the boundary between the collection core and external
// storage: it hands finished snapshots to the configured output sinks and
// performs no parsing or aggregation of its own.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vdem-gis/outage-etl/internal/domain"
)

// Sink receives one run's complete result.
type Sink interface {
	Name() string
	WriteSnapshot(ctx context.Context, result domain.RunResult) error
}

// Publisher fans a run result out to every configured sink. Partial data
// beats no data, so one sink failing never stops the others.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewPublisher creates a Publisher over the given sinks.
func NewPublisher(logger *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{sinks: sinks, logger: logger}
}

// Publish writes the result to all sinks, logging per-sink failures and
// returning them joined so the caller can report degraded publishing.
func (p *Publisher) Publish(ctx context.Context, result domain.RunResult) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.WriteSnapshot(ctx, result); err != nil {
			p.logger.Error("sink write failed", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

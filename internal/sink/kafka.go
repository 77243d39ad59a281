package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
)

// FeatureWriter publishes the two aggregate views to the feature-store
// topics: one message per provider/locality row and one per locality row.
// The downstream GIS loader consumes these to update its feature classes.
type FeatureWriter struct {
	providerWriter *kafkago.Writer
	localityWriter *kafkago.Writer
	logger         *slog.Logger
}

// NewFeatureWriter creates Kafka producers for the configured feature-store
// topics.
func NewFeatureWriter(cfg *config.Config, logger *slog.Logger) *FeatureWriter {
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.KafkaBrokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return &FeatureWriter{
		providerWriter: newWriter(cfg.KafkaProviderTopic),
		localityWriter: newWriter(cfg.KafkaLocalityTopic),
		logger:         logger,
	}
}

func (w *FeatureWriter) Name() string { return "feature-store" }

// WriteSnapshot publishes both views. Each view is written in a single
// WriteMessages call so a run lands atomically per topic.
func (w *FeatureWriter) WriteSnapshot(ctx context.Context, result domain.RunResult) error {
	providerMsgs := make([]kafkago.Message, 0, len(result.Snapshot.ByProviderAndLocality))
	for _, rec := range result.Snapshot.ByProviderAndLocality {
		msg, err := toMessage(rec.JoinKey, rec, result)
		if err != nil {
			return err
		}
		providerMsgs = append(providerMsgs, msg)
	}

	localityMsgs := make([]kafkago.Message, 0, len(result.Snapshot.ByLocality))
	for _, row := range result.Snapshot.ByLocality {
		msg, err := toMessage(row.LocalityKey, row, result)
		if err != nil {
			return err
		}
		localityMsgs = append(localityMsgs, msg)
	}

	if len(providerMsgs) > 0 {
		if err := w.providerWriter.WriteMessages(ctx, providerMsgs...); err != nil {
			return fmt.Errorf("write provider rows: %w", err)
		}
	}
	if len(localityMsgs) > 0 {
		if err := w.localityWriter.WriteMessages(ctx, localityMsgs...); err != nil {
			return fmt.Errorf("write locality rows: %w", err)
		}
	}
	return nil
}

func (w *FeatureWriter) Close() error {
	pErr := w.providerWriter.Close()
	lErr := w.localityWriter.Close()
	if pErr != nil {
		return pErr
	}
	return lErr
}

// toMessage marshals a row keyed for log-compacted topics, with run metadata
// in headers so consumers can group a run's rows.
func toMessage(key string, row any, result domain.RunResult) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(result.RunID)},
			{Key: "run_timestamp", Value: []byte(result.RunTimestamp.Format(time.RFC3339))},
		},
	}, nil
}

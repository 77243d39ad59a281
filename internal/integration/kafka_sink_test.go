//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdem-gis/outage-etl/internal/config"
	"github.com/vdem-gis/outage-etl/internal/domain"
	"github.com/vdem-gis/outage-etl/internal/sink"
)

const (
	testProviderTopic = "test-outages-by-provider-locality"
	testLocalityTopic = "test-outages-by-locality"
)

// readAll consumes exactly n messages from a topic.
func readAll(ctx context.Context, t *testing.T, broker, topic string, n int) []kafkago.Message {
	t.Helper()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%s-%d", topic, time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msgs := make([]kafkago.Message, 0, n)
	for len(msgs) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from %s", topic)
		msgs = append(msgs, msg)
	}
	return msgs
}

func headerMap(msg kafkago.Message) map[string]string {
	m := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		m[h.Key] = string(h.Value)
	}
	return m
}

// TestFeatureWriterRoundTrip publishes a run snapshot through the feature
// writer and verifies both topic views arrive keyed and headed for
// log-compacted consumption.
func TestFeatureWriterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testProviderTopic)
	createTopic(t, broker, testLocalityTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaProviderTopic: testProviderTopic,
		KafkaLocalityTopic: testLocalityTopic,
	}

	runTS := time.Date(2026, 2, 10, 14, 17, 0, 0, time.UTC)
	served := 4000
	records := []domain.OutageRecord{
		{
			Provider:        "Dominion Virginia Power",
			Locality:        "Fairfax",
			LocalityKey:     "fairfax",
			JoinKey:         "dominionvirginiapowerfairfax",
			CustomersOut:    120,
			CustomersServed: &served,
			PercentOut:      domain.DerivePercent(120, &served),
			RunTimestamp:    runTS,
		},
		{
			Provider:     "A and N Electric Cooperative",
			Locality:     "Fairfax",
			LocalityKey:  "fairfax",
			JoinKey:      "aandnelectriccooperativefairfax",
			CustomersOut: 30,
			RunTimestamp: runTS,
		},
	}
	agg := domain.Aggregate(records)
	result := domain.RunResult{
		RunID:        "run-integration-1",
		RunTimestamp: runTS,
		Snapshot:     agg.Snapshot,
	}

	writer := sink.NewFeatureWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.WriteSnapshot(ctx, result))

	// Provider view: one message per record, keyed by join key.
	providerMsgs := readAll(ctx, t, broker, testProviderTopic, 2)
	keys := map[string]bool{}
	for _, msg := range providerMsgs {
		keys[string(msg.Key)] = true

		headers := headerMap(msg)
		assert.Equal(t, "run-integration-1", headers["run_id"])
		ts, err := time.Parse(time.RFC3339, headers["run_timestamp"])
		require.NoError(t, err)
		assert.True(t, ts.Equal(runTS))

		var rec domain.OutageRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		assert.Equal(t, "fairfax", rec.LocalityKey)
	}
	assert.True(t, keys["dominionvirginiapowerfairfax"])
	assert.True(t, keys["aandnelectriccooperativefairfax"])

	// Locality view: one summed row keyed by locality key.
	localityMsgs := readAll(ctx, t, broker, testLocalityTopic, 1)
	msg := localityMsgs[0]
	assert.Equal(t, "fairfax", string(msg.Key))

	var row domain.LocalityRow
	require.NoError(t, json.Unmarshal(msg.Value, &row))
	assert.Equal(t, 150, row.CustomersOut)
	require.NotNil(t, row.CustomersServed)
	assert.Equal(t, 4000, *row.CustomersServed)
	assert.Equal(t, 2, row.Providers)
}

// TestFeatureWriterEmptySnapshot verifies that a run with zero records writes
// nothing rather than failing.
func TestFeatureWriterEmptySnapshot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testProviderTopic)
	createTopic(t, broker, testLocalityTopic)

	cfg := &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaProviderTopic: testProviderTopic,
		KafkaLocalityTopic: testLocalityTopic,
	}

	writer := sink.NewFeatureWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.WriteSnapshot(ctx, domain.RunResult{
		RunID:        "run-empty",
		RunTimestamp: time.Now().UTC(),
	}))
}

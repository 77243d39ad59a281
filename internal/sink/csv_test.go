package sink_test

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdem-gis/outage-etl/internal/domain"
	"github.com/vdem-gis/outage-etl/internal/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func sampleResult() domain.RunResult {
	ts := time.Date(2026, 2, 10, 14, 17, 0, 0, time.UTC)
	served := intPtr(4000)
	return domain.RunResult{
		RunID:        "run-1",
		RunTimestamp: ts,
		Snapshot: domain.Snapshot{
			ByProviderAndLocality: []domain.OutageRecord{
				{
					Provider:        "Dominion Virginia Power",
					Locality:        "Fairfax",
					LocalityKey:     "fairfax",
					JoinKey:         "dominionvirginiapowerfairfax",
					CustomersOut:    120,
					CustomersServed: served,
					PercentOut:      domain.DerivePercent(120, served),
					RunTimestamp:    ts,
				},
				{
					Provider:     "A and N Electric Cooperative",
					Locality:     "Accomack",
					LocalityKey:  "accomack",
					JoinKey:      "aandnelectriccooperativeaccomack",
					CustomersOut: 12,
					RunTimestamp: ts,
				},
			},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink_HeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "outage_log.csv")
	s := sink.NewCSVSink(path, testLogger())

	require.NoError(t, s.WriteSnapshot(context.Background(), sampleResult()))

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"run_timestamp", "provider", "locality", "customers_out", "customers_served", "percent_out"}, rows[0])
	assert.Equal(t, []string{"2026-02-10T14:17:00Z", "Dominion Virginia Power", "Fairfax", "120", "4000", "0.0300"}, rows[1])

	// Served and percent stay empty when the provider publishes no served count.
	assert.Equal(t, []string{"2026-02-10T14:17:00Z", "A and N Electric Cooperative", "Accomack", "12", "", ""}, rows[2])
}

func TestCSVSink_AppendsWithoutRepeatingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outage_log.csv")
	s := sink.NewCSVSink(path, testLogger())

	require.NoError(t, s.WriteSnapshot(context.Background(), sampleResult()))
	require.NoError(t, s.WriteSnapshot(context.Background(), sampleResult()))

	rows := readCSV(t, path)
	require.Len(t, rows, 5, "header once, two rows per run")
	assert.Equal(t, "run_timestamp", rows[0][0])
	for _, row := range rows[1:] {
		assert.NotEqual(t, "run_timestamp", row[0])
	}
}

func TestCSVSink_EmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outage_log.csv")
	s := sink.NewCSVSink(path, testLogger())

	result := sampleResult()
	result.Snapshot.ByProviderAndLocality = nil
	require.NoError(t, s.WriteSnapshot(context.Background(), result))

	rows := readCSV(t, path)
	require.Len(t, rows, 1, "header only for an empty run")
}

// failingSink always errors, for publisher fan-out tests.
type failingSink struct{ name string }

func (f *failingSink) Name() string { return f.name }
func (f *failingSink) WriteSnapshot(context.Context, domain.RunResult) error {
	return errors.New("boom")
}

func TestPublisher_OneSinkFailingDoesNotStopOthers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outage_log.csv")
	csvSink := sink.NewCSVSink(path, testLogger())

	p := sink.NewPublisher(testLogger(), &failingSink{name: "feature-store"}, csvSink)
	err := p.Publish(context.Background(), sampleResult())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature-store")

	rows := readCSV(t, path)
	assert.Len(t, rows, 3, "csv sink still wrote despite the other sink failing")
}

func TestPublisher_AllSinksHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outage_log.csv")
	p := sink.NewPublisher(testLogger(), sink.NewCSVSink(path, testLogger()))
	assert.NoError(t, p.Publish(context.Background(), sampleResult()))
}

package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vdem-gis/outage-etl/internal/domain"
)

var csvHeader = []string{"run_timestamp", "provider", "locality", "customers_out", "customers_served", "percent_out"}

// CSVSink appends one row per outage record to a monitoring log file. The
// header is written when the file is created.
type CSVSink struct {
	path   string
	logger *slog.Logger
}

// NewCSVSink creates a CSV sink writing to path. Parent directories are
// created on first write.
func NewCSVSink(path string, logger *slog.Logger) *CSVSink {
	return &CSVSink{path: path, logger: logger}
}

func (s *CSVSink) Name() string { return "csv" }

// WriteSnapshot appends the run's provider/locality rows to the log.
func (s *CSVSink) WriteSnapshot(_ context.Context, result domain.RunResult) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create csv directory: %w", err)
	}

	_, statErr := os.Stat(s.path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}

	for _, rec := range result.Snapshot.ByProviderAndLocality {
		if err := w.Write(csvRow(rec)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func csvRow(rec domain.OutageRecord) []string {
	served := ""
	if rec.CustomersServed != nil {
		served = strconv.Itoa(*rec.CustomersServed)
	}
	percent := ""
	if rec.PercentOut != nil {
		percent = strconv.FormatFloat(*rec.PercentOut, 'f', 4, 64)
	}
	return []string{
		rec.RunTimestamp.Format(time.RFC3339),
		rec.Provider,
		rec.Locality,
		strconv.Itoa(rec.CustomersOut),
		served,
		percent,
	}
}

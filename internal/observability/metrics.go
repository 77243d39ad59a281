package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus collectors for one collector run. The process
// is a short-lived batch job, so metrics live in a private registry and are
// pushed to a Pushgateway at the end of the run rather than scraped.
type Metrics struct {
	registry *prometheus.Registry

	ProviderOutcomes   *prometheus.CounterVec // labels: provider, outcome={succeeded,partial,failed}
	RecordsParsed      *prometheus.CounterVec // labels: provider
	RecordDecodeErrors *prometheus.CounterVec // labels: provider
	ProbeAttempts      *prometheus.CounterVec // labels: provider
	FetchRetries       *prometheus.CounterVec // labels: provider

	AggregationConflicts prometheus.Counter
	LocalitiesReported   prometheus.Gauge
	CustomersOut         prometheus.Gauge

	ProviderDuration *prometheus.HistogramVec // labels: provider
	RunDuration      prometheus.Histogram
}

// NewMetrics creates all run metrics registered against a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ProviderOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_etl",
			Name:      "provider_outcomes_total",
			Help:      "Terminal pipeline states per provider per run.",
		}, []string{"provider", "outcome"}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_etl",
			Name:      "records_parsed_total",
			Help:      "Outage records successfully parsed.",
		}, []string{"provider"}),
		RecordDecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_etl",
			Name:      "record_decode_errors_total",
			Help:      "Malformed locality entries skipped during parsing.",
		}, []string{"provider"}),
		ProbeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_etl",
			Name:      "probe_attempts_total",
			Help:      "Endpoint existence checks issued.",
		}, []string{"provider"}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outage_etl",
			Name:      "fetch_retries_total",
			Help:      "Payload fetch retries after transient failures.",
		}, []string{"provider"}),
		AggregationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outage_etl",
			Name:      "aggregation_conflicts_total",
			Help:      "Duplicate provider/locality keys resolved last-wins.",
		}),
		LocalitiesReported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outage_etl",
			Name:      "localities_reported",
			Help:      "Localities present in the by-locality view this run.",
		}),
		CustomersOut: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outage_etl",
			Name:      "customers_out",
			Help:      "Total customers out across all localities this run.",
		}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outage_etl",
			Name:      "provider_duration_seconds",
			Help:      "Duration of one provider's probe-fetch-parse pipeline.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outage_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of the complete collect-aggregate-publish run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	m.registry.MustRegister(
		m.ProviderOutcomes,
		m.RecordsParsed,
		m.RecordDecodeErrors,
		m.ProbeAttempts,
		m.FetchRetries,
		m.AggregationConflicts,
		m.LocalitiesReported,
		m.CustomersOut,
		m.ProviderDuration,
		m.RunDuration,
	)

	return m
}

// Push sends the run's metrics to a Pushgateway. Grouped by job only: each
// push replaces the previous run's values, which is the desired semantics
// for a 15-minute snapshot job.
func (m *Metrics) Push(gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(m.registry).Push()
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all collector settings, populated from environment variables.
type Config struct {
	ProvidersPath string
	CSVPath       string
	LogLevel      string
	LogFormat     string

	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaProviderTopic string
	KafkaLocalityTopic string

	ProbeTimeout    time.Duration
	ProbeAttempts   int
	FetchTimeout    time.Duration
	FetchRetries    int
	ProviderCeiling time.Duration

	PushgatewayURL string
	MetricsJob     string
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	probeTimeout, err := parseDuration("PROBE_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	ceiling, err := parseDuration("PROVIDER_CEILING", "45s")
	if err != nil {
		return nil, err
	}
	probeAttempts, err := parseInt("PROBE_MAX_ATTEMPTS", 32, 1, 256)
	if err != nil {
		return nil, err
	}
	fetchRetries, err := parseInt("FETCH_RETRIES", 2, 0, 10)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := true
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		ProvidersPath: envOrDefault("PROVIDERS_CONFIG", "providers.yaml"),
		CSVPath:       envOrDefault("CSV_PATH", "data/outage_log.csv"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		LogFormat:     envOrDefault("LOG_FORMAT", "json"),

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaProviderTopic: envOrDefault("KAFKA_PROVIDER_TOPIC", "outages-by-provider-locality"),
		KafkaLocalityTopic: envOrDefault("KAFKA_LOCALITY_TOPIC", "outages-by-locality"),

		ProbeTimeout:    probeTimeout,
		ProbeAttempts:   probeAttempts,
		FetchTimeout:    fetchTimeout,
		FetchRetries:    fetchRetries,
		ProviderCeiling: ceiling,

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		MetricsJob:     envOrDefault("METRICS_JOB", "outage-etl"),
	}

	if cfg.ProvidersPath == "" {
		return nil, errors.New("PROVIDERS_CONFIG is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && (cfg.KafkaProviderTopic == "" || cfg.KafkaLocalityTopic == "") {
		return nil, errors.New("KAFKA_PROVIDER_TOPIC and KAFKA_LOCALITY_TOPIC are required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minVal, maxVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minVal || n > maxVal {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, minVal, maxVal)
	}
	return n, nil
}

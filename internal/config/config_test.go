package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdem-gis/outage-etl/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "providers.yaml", cfg.ProvidersPath)
	assert.Equal(t, "data/outage_log.csv", cfg.CSVPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "outages-by-provider-locality", cfg.KafkaProviderTopic)
	assert.Equal(t, "outages-by-locality", cfg.KafkaLocalityTopic)
	assert.Equal(t, 5*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 32, cfg.ProbeAttempts)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2, cfg.FetchRetries)
	assert.Equal(t, 45*time.Second, cfg.ProviderCeiling)
	assert.Equal(t, "outage-etl", cfg.MetricsJob)
	assert.Empty(t, cfg.PushgatewayURL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PROVIDERS_CONFIG", "/etc/outage/providers.yaml")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("PROBE_TIMEOUT", "3s")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("PROVIDER_CEILING", "1m")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgw:9091")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/outage/providers.yaml", cfg.ProvidersPath)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 5, cfg.FetchRetries)
	assert.Equal(t, time.Minute, cfg.ProviderCeiling)
	assert.Equal(t, "http://pushgw:9091", cfg.PushgatewayURL)
}

func TestLoad_KafkaDisabled(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", " ")

	cfg, err := config.Load()
	require.NoError(t, err, "brokers are not required when publishing is off")
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad duration", key: "PROBE_TIMEOUT", value: "soon"},
		{name: "negative duration", key: "FETCH_TIMEOUT", value: "-5s"},
		{name: "retries out of range", key: "FETCH_RETRIES", value: "99"},
		{name: "retries not a number", key: "FETCH_RETRIES", value: "two"},
		{name: "attempts below minimum", key: "PROBE_MAX_ATTEMPTS", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingBrokersWithKafkaEnabled(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")

	_, err := config.Load()
	assert.Error(t, err)
}

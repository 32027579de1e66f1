package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir keeps a stray .env in the package directory out of the test.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/telemetry?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "raw-telemetry", cfg.KafkaSourceTopic)
	assert.Equal(t, "observations", cfg.KafkaSinkTopic)
	assert.Equal(t, "glacier-telemetry", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 1000, cfg.CacheSize)
	assert.Equal(t, 3, cfg.IngestRetries)
	assert.Equal(t, "_", cfg.NullToken)

	assert.Equal(t, 1600*time.Second, cfg.Quality.MinSpacing)
	assert.Equal(t, 3*time.Hour, cfg.Quality.JumpWindow)
	assert.Equal(t, time.Hour, cfg.Quality.NeighborWindow)
	assert.Equal(t, 5.0, cfg.Quality.JumpThresholdCM)
	assert.Equal(t, 600.0, cfg.Quality.RangeCeilingCM)
	assert.Equal(t, 3, cfg.Quality.MinSatellites)
}

func TestLoad_CustomEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("DATABASE_URL", "postgres://db:5432/glacier")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("INGEST_RETRIES", "0")
	t.Setenv("QC_MIN_SPACING", "2400s")
	t.Setenv("QC_JUMP_WINDOW", "4200s")
	t.Setenv("QC_JUMP_THRESHOLD_CM", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db:5432/glacier", cfg.DatabaseURL)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Empty(t, cfg.KafkaSinkTopic, "blank disables publishing")
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.IngestRetries)
	assert.Equal(t, 2400*time.Second, cfg.Quality.MinSpacing)
	assert.Equal(t, 4200*time.Second, cfg.Quality.JumpWindow)
	assert.Equal(t, 10.0, cfg.Quality.JumpThresholdCM)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_ADDR=:7070\nLOG_LEVEL=warn\n"), 0o600))
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() { os.Unsetenv("HTTP_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, "error", cfg.LogLevel, "environment wins over .env")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	inTempDir(t)
	t.Setenv("KAFKA_BROKERS", "broker1:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"BATCH_SIZE", "0"},
		{"BATCH_SIZE", "9999"},
		{"BATCH_FLUSH_INTERVAL", "soon"},
		{"CACHE_TTL", "-5m"},
		{"INGEST_RETRIES", "many"},
		{"KAFKA_ENABLED", "maybe"},
		{"QC_MIN_SPACING", "abc"},
		{"QC_JUMP_THRESHOLD_CM", "five"},
		{"QC_MIN_SATELLITES", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	inTempDir(t)
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_InvalidThresholds(t *testing.T) {
	inTempDir(t)
	t.Setenv("QC_RANGE_CEILING_CM", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality thresholds")
}

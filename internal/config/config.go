package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/glacier-telemetry/internal/quality"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string // blank disables publishing
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration

	// Query cache. An empty RedisAddr selects the in-process cache.
	RedisAddr string
	CacheTTL  time.Duration
	CacheSize int

	IngestRetries int
	NullToken     string

	Quality quality.Thresholds
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:      envOrDefault("DATABASE_URL", "postgres://localhost:5432/telemetry?sslmode=disable"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-telemetry"),
		KafkaSinkTopic:   lookupOrDefault("KAFKA_SINK_TOPIC", "observations"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "glacier-telemetry"),
		RedisAddr:        envOrDefault("REDIS_ADDR", ""),
		NullToken:        envOrDefault("NULL_TOKEN", "_"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s", false); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", len(cfg.KafkaBrokers) > 0); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = parseInt("BATCH_SIZE", 50, 1, 1000); err != nil {
		return nil, err
	}
	if cfg.BatchFlushInterval, err = parseDuration("BATCH_FLUSH_INTERVAL", "500ms", false); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = parseDuration("CACHE_TTL", "30m", true); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = parseInt("CACHE_SIZE", 1000, 1, 1_000_000); err != nil {
		return nil, err
	}
	if cfg.IngestRetries, err = parseInt("INGEST_RETRIES", 3, 0, 20); err != nil {
		return nil, err
	}
	if cfg.Quality, err = loadThresholds(); err != nil {
		return nil, err
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func loadThresholds() (quality.Thresholds, error) {
	th := quality.DefaultThresholds()
	var err error
	if th.MinSpacing, err = parseDuration("QC_MIN_SPACING", th.MinSpacing.String(), true); err != nil {
		return th, err
	}
	if th.JumpWindow, err = parseDuration("QC_JUMP_WINDOW", th.JumpWindow.String(), true); err != nil {
		return th, err
	}
	if th.NeighborWindow, err = parseDuration("QC_NEIGHBOR_WINDOW", th.NeighborWindow.String(), false); err != nil {
		return th, err
	}
	if th.JumpThresholdCM, err = parseFloat("QC_JUMP_THRESHOLD_CM", th.JumpThresholdCM); err != nil {
		return th, err
	}
	if th.RangeCeilingCM, err = parseFloat("QC_RANGE_CEILING_CM", th.RangeCeilingCM); err != nil {
		return th, err
	}
	if th.MinSatellites, err = parseInt("QC_MIN_SATELLITES", th.MinSatellites, 0, 64); err != nil {
		return th, err
	}
	if err := th.Validate(); err != nil {
		return th, fmt.Errorf("invalid quality thresholds: %w", err)
	}
	return th, nil
}

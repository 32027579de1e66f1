package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/glacier-telemetry/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/glacier-telemetry/internal/adapter/kafka"
	"github.com/couchcryptid/glacier-telemetry/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/glacier-telemetry/internal/adapter/redis"
	"github.com/couchcryptid/glacier-telemetry/internal/config"
	"github.com/couchcryptid/glacier-telemetry/internal/domain"
	"github.com/couchcryptid/glacier-telemetry/internal/ingest"
	"github.com/couchcryptid/glacier-telemetry/internal/observability"
	"github.com/couchcryptid/glacier-telemetry/internal/quality"
	"github.com/couchcryptid/glacier-telemetry/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Error("schema migration failed", "error", err)
		os.Exit(1)
	}
	store := postgres.New(db)
	ready := httpadapter.ReadinessChecks{store}

	// Query cache: Redis when configured, otherwise in-process.
	var cache query.Cache
	if cfg.RedisAddr != "" {
		kv := redisadapter.NewClientKV(cfg.RedisAddr)
		defer kv.Close()
		rc := redisadapter.NewCache(kv)
		cache = rc
		ready = append(ready, rc)
		logger.Info("redis query cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	} else {
		cache = query.NewMemoryCache(cfg.CacheSize, clockwork.NewRealClock())
		logger.Info("in-memory query cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	}

	svc := query.NewService(store, store, cache, cfg.CacheTTL, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.NewAPI(svc, store, logger), ready, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Stream ingestion (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		opts := ingest.Options{Retries: cfg.IngestRetries}
		if cfg.KafkaSinkTopic != "" {
			writer = kafkaadapter.NewWriter(cfg, logger)
			opts.Publisher = writer
		}
		controller := ingest.NewController(store, domain.NewNormalizer(cfg.NullToken, clockwork.NewRealClock()),
			quality.NewEvaluator(store, cfg.Quality), logger, metrics, opts)

		reader = kafkaadapter.NewReader(cfg, logger)
		stream := ingest.NewStream(reader, store, controller, logger, metrics, cfg.BatchSize)

		go func() {
			if err := stream.Run(ctx); err != nil {
				logger.Error("stream ingestion error", "error", err)
			}
		}()
		logger.Info("kafka stream ingestion enabled", "topic", cfg.KafkaSourceTopic, "sink", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka stream ingestion disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

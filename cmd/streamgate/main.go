// Command streamgate runs the report ingestion service: rate-limited
// streaming uploads, a durable background processing queue with retries and
// a dead-letter queue, and a read-through response cache, all backed by a
// single Redis instance.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/streamgate-io/streamgate/pkg/cache"
	"github.com/streamgate-io/streamgate/pkg/logging"
	"github.com/streamgate-io/streamgate/pkg/metrics"
	"github.com/streamgate-io/streamgate/pkg/queue"
	"github.com/streamgate-io/streamgate/pkg/ratelimit"
	"github.com/streamgate-io/streamgate/pkg/store"
	"github.com/streamgate-io/streamgate/pkg/upload"
)

const reportQueue = "report-generation"

func main() {
	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	uploadDir := getEnv("UPLOAD_DIR", "uploads")
	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", upload.DefaultMaxBytes)
	maxAttempts := getEnvInt("QUEUE_MAX_ATTEMPTS", 3)
	backoffBase := time.Duration(getEnvInt("QUEUE_BACKOFF_BASE_SECONDS", 1)) * time.Second
	concurrency := getEnvInt("QUEUE_WORKER_CONCURRENCY", 2)
	rateLimit := getEnvInt("RATE_LIMIT", 10)
	rateWindow := time.Duration(getEnvInt("RATE_WINDOW_SECONDS", 60)) * time.Second
	cacheTTL := getEnvInt("CACHE_TTL_SECONDS", 30)

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, redisURL)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	defer st.Close()
	logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

	limiter := ratelimit.New(st, logger)
	rule := ratelimit.Rule{Limit: rateLimit, Window: rateWindow}
	limited := ratelimit.Middleware(limiter, rule, nil)

	cacheManager := cache.NewManager(st, logger)

	q := queue.New(reportQueue, st, queue.Options{
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
	}, logger)

	processor, err := upload.NewProcessor(filepath.Join(uploadDir, "processed"), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create processor")
	}

	ingestor, err := upload.NewIngestor(upload.Config{
		Root:     uploadDir,
		MaxBytes: maxUploadBytes,
	}, q, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create ingestor")
	}

	worker := queue.NewWorker(q, processor.Process, queue.WorkerOptions{
		Concurrency: concurrency,
	})
	worker.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("POST /reports/upload", limited(uploadHandler(ingestor, logger)))
	mux.Handle("GET /reports/{id}", limited(cacheManager.Handler("reports", cacheTTL,
		reportStatusHandler(q, processor))))
	mux.Handle("DELETE /reports/{id}", cacheManager.InvalidatingHandler("reports",
		deleteReportHandler(q, processor, logger)))
	mux.Handle("GET /admin/dlq", dlqHandler(q))
	mux.Handle("GET /health", healthHandler(st))
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 0, // uploads may stream for a long time
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	// Drains in-flight jobs before the store closes.
	worker.Close()
	logger.Info().Msg("Shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

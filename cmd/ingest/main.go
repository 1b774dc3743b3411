package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/caribe-weather/internal/cache"
	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/ingest"
	"github.com/smukkama/caribe-weather/internal/logging"
	"github.com/smukkama/caribe-weather/internal/metrics"
	"github.com/smukkama/caribe-weather/internal/queue"
	"github.com/smukkama/caribe-weather/internal/weather"
	"github.com/smukkama/caribe-weather/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, "ingest")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ingestion failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	recorder := metrics.NewRecorder()
	options := []ingest.Option{ingest.WithRecorder(recorder)}

	if cfg.Kafka.Enabled() {
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
		defer producer.Close()
		options = append(options, ingest.WithSinks(producer))
		logger.Info("publishing readings to Kafka", "topic", cfg.Kafka.TopicReadings)
	}

	if cfg.Redis.Enabled() {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("latest-reading cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			options = append(options, ingest.WithSinks(cache.NewLatestReadings(redisClient, cache.DefaultTTL)))
			logger.Info("caching latest readings in Redis", "addr", cfg.Redis.Addr)
		}
	}

	if cfg.HTTP.MetricsAddr != "" {
		srv := serveMetrics(cfg.HTTP.MetricsAddr, recorder, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client := weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.Timeout)
	loop := ingest.NewLoop(cfg.Stations, client, db, ingest.OptionsFromConfig(cfg.Ingest), logger, options...)

	summary, err := loop.Run(ctx)
	if summary != nil {
		fmt.Printf("\nRun %s: %d cycles, %d/%d readings inserted in %s (%.1f/min)\n",
			summary.RunID, summary.Cycles, summary.Inserted, summary.Attempted,
			summary.Elapsed.Round(time.Second), summary.RatePerMinute)
	}
	return err
}

func serveMetrics(addr string, recorder *metrics.Recorder, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

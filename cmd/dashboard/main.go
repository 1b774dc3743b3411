package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/caribe-weather/internal/anomaly"
	"github.com/smukkama/caribe-weather/internal/api"
	"github.com/smukkama/caribe-weather/internal/cache"
	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/logging"
	"github.com/smukkama/caribe-weather/internal/metrics"
	"github.com/smukkama/caribe-weather/internal/predictor"
	"github.com/smukkama/caribe-weather/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, "dashboard")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("dashboard failed", "error", err)
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

	recorder := metrics.NewRecorder()
	deps := api.Deps{
		Store:     db,
		Scanner:   anomaly.NewScanner(db, recorder, logger),
		Metrics:   recorder,
		LoadModel: func() (*predictor.Model, error) { return predictor.Load(cfg.Model.Path) },
		Logger:    logger,
	}

	if cfg.Redis.Enabled() {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("latest-reading cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			deps.Cache = cache.NewLatestReadings(redisClient, cache.DefaultTTL)
		}
	}

	app := api.NewApp(deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dashboard listening", "addr", cfg.HTTP.Addr)
		errCh <- app.Listen(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/logging"
	"github.com/smukkama/caribe-weather/internal/predictor"
	"github.com/smukkama/caribe-weather/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, "trainer")
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	samples, err := db.TrainingSamples(ctx)
	if err != nil {
		return err
	}
	logger.Info("training data loaded", "samples", len(samples))

	model, eval, err := predictor.Train(samples)
	if errors.Is(err, predictor.ErrNotEnoughData) {
		logger.Warn("not enough data to train", "samples", len(samples), "required", predictor.MinSamples)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nTrained on %d observations in %d mini-batches of %d\n", eval.TrainSize, eval.Batches, predictor.BatchSize)
	if eval.TestSize > 0 {
		fmt.Println("\n=== MODEL METRICS ===")
		fmt.Printf("MAE: %.2f°C\n", eval.MAE)
		fmt.Printf("R2:  %.3f\n", eval.R2)

		fmt.Println("\n=== SAMPLE PREDICTIONS ===")
		for _, ex := range eval.Examples {
			fmt.Printf("Actual: %.1f°C | Predicted: %.1f°C | Error: %.1f°C\n", ex.Actual, ex.Predicted, ex.Error)
		}
	}

	if err := model.Save(cfg.Model.Path); err != nil {
		return err
	}
	logger.Info("model saved", "path", cfg.Model.Path)

	temp, err := model.Predict(80, 1010, 10, 50)
	if err != nil {
		return err
	}
	fmt.Println("\n=== EXAMPLE PREDICTION ===")
	fmt.Println("Humidity 80%, pressure 1010 hPa, wind 10 m/s, cloud cover 50%")
	fmt.Printf("Predicted temperature: %.1f°C\n", temp)

	return nil
}

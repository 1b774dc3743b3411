package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/logging"
	"github.com/smukkama/caribe-weather/internal/queue"
	"github.com/smukkama/caribe-weather/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, "setup")
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.ServerVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.DBName)
	fmt.Printf("PostgreSQL version: %s\n", version)

	schema, err := database.RunMigrations(cfg.Database.URL())
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "version", schema)

	inserted, err := db.SeedStations(ctx, toDatabaseStations(cfg.Stations))
	if err != nil {
		return err
	}
	logger.Info("stations seeded", "configured", len(cfg.Stations), "inserted", inserted)

	tables, err := db.ListTables(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\nTables:")
	for _, t := range tables {
		fmt.Printf("  - %s\n", t)
	}

	stations, err := db.ListStations(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\nStations:")
	for _, s := range stations {
		region := ""
		if s.Region != nil {
			region = *s.Region
		}
		fmt.Printf("  %d. %s (%s)\n", s.ID, s.Name, region)
	}

	if cfg.Kafka.Enabled() {
		for _, topic := range []string{cfg.Kafka.TopicReadings, cfg.Kafka.TopicAlerts} {
			// Creating an existing topic fails; that is not a setup failure.
			if err := queue.CreateTopic(cfg.Kafka.Brokers, topic, 3, 1); err != nil {
				logger.Warn("topic not created", "topic", topic, "error", err)
				continue
			}
			logger.Info("topic created", "topic", topic)
		}
	}

	return nil
}

func toDatabaseStations(stations []config.Station) []database.Station {
	out := make([]database.Station, 0, len(stations))
	for _, s := range stations {
		region, lat, lon, elevation := s.Region, s.Latitude, s.Longitude, s.Elevation
		out = append(out, database.Station{
			ID:        s.ID,
			Name:      s.Name,
			Region:    &region,
			Latitude:  &lat,
			Longitude: &lon,
			Elevation: &elevation,
		})
	}
	return out
}

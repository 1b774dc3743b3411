package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/caribe-weather/internal/anomaly"
	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/logging"
	"github.com/smukkama/caribe-weather/internal/notification"
	"github.com/smukkama/caribe-weather/internal/queue"
	"github.com/smukkama/caribe-weather/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, "scanner")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scan failed", "error", err)
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

	var since time.Time
	if cfg.Scan.Window > 0 {
		since = time.Now().Add(-cfg.Scan.Window)
	}

	report, err := anomaly.NewScanner(db, nil, logger).Scan(ctx, since)
	if err != nil {
		return err
	}
	printReport(report)

	if notifier := notification.NewEmailNotifier(&cfg.SMTP, logger); notifier.Configured() {
		if err := notifier.SendScanReport(report, since); err != nil {
			logger.Warn("failed to email report", "error", err)
		}
	}

	if cfg.Kafka.Enabled() {
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()

		alerts := report.Alerts()
		if err := producer.PublishAlerts(ctx, alerts); err != nil {
			logger.Warn("failed to publish alerts", "error", err)
		} else if len(alerts) > 0 {
			logger.Info("alerts published", "topic", cfg.Kafka.TopicAlerts, "count", len(alerts))
		}
	}

	return nil
}

func printReport(r *anomaly.Report) {
	fmt.Println("\n=== ANOMALY SCAN ===")
	fmt.Printf("Readings analyzed: %d\n", r.Summary.ReadingsScanned)
	fmt.Printf("Temperature jumps:  %d\n", len(r.TemperatureJumps))
	fmt.Printf("Pressure anomalies: %d\n", len(r.PressureAnomalies))
	fmt.Printf("Extreme winds:      %d\n", len(r.ExtremeWinds))
	fmt.Printf("Alerts raised:      %d\n", r.Summary.AlertsRaised)

	fmt.Println("\n=== STATISTICS ===")
	fmt.Printf("Temperature mean: %s\n", format(r.Summary.TemperatureMean, "°C"))
	fmt.Printf("Temperature min:  %s\n", format(r.Summary.TemperatureMin, "°C"))
	fmt.Printf("Temperature max:  %s\n", format(r.Summary.TemperatureMax, "°C"))
	fmt.Printf("Pressure mean:    %s\n", format(r.Summary.PressureMean, "hPa"))
	fmt.Printf("Wind mean:        %s\n", format(r.Summary.WindMean, "m/s"))

	if lines := r.Lines(); len(lines) > 0 {
		fmt.Println("\n=== ALERTS ===")
		for _, l := range lines {
			fmt.Println(l)
		}
	}
}

func format(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f %s", *v, unit)
}

package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/smukkama/caribe-weather/pkg/config"
)

// New builds the process logger: colored text in dev, JSON in prod.
func New(cfg *config.Config, appName string) *slog.Logger {
	return newWithWriter(os.Stdout, cfg.AppEnv, cfg.LogLevel, appName)
}

func newWithWriter(w io.Writer, appEnv string, level slog.Level, appName string) *slog.Logger {
	if appEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"env", appEnv,
	)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/smukkama/caribe-weather/internal/anomaly"
	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/metrics"
	"github.com/smukkama/caribe-weather/internal/predictor"
	"github.com/smukkama/caribe-weather/internal/protocol"
)

var validate = validator.New()

const maxHourlyRange = 31 * 24 * time.Hour

// ReadingStore is the read side of the readings database.
type ReadingStore interface {
	RecentReadings(ctx context.Context, since time.Time) ([]database.StationReading, error)
	LatestReadings(ctx context.Context) ([]database.StationReading, error)
	GetStatistics(ctx context.Context) (*database.Statistics, error)
	HourlyAverages(ctx context.Context, from, to time.Time) ([]database.HourlyAverage, error)
	DailySummaries(ctx context.Context, from, to time.Time) ([]database.DailySummary, error)
}

// LatestCache holds the newest reading of every station.
type LatestCache interface {
	All(ctx context.Context) ([]*protocol.ReadingMessage, error)
}

// AnomalyScanner runs the anomaly rules on demand.
type AnomalyScanner interface {
	Scan(ctx context.Context, since time.Time) (*anomaly.Report, error)
}

// Deps are the collaborators of the API. Cache, Metrics and LoadModel are optional.
type Deps struct {
	Store     ReadingStore
	Scanner   AnomalyScanner
	Cache     LatestCache
	Metrics   *metrics.Recorder
	LoadModel func() (*predictor.Model, error)
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewApp builds the fiber app with the error handler, middleware and routes.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "caribe-weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	if deps.Metrics != nil {
		app.Use(countRequests(deps.Metrics))
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "caribe-weather-dashboard",
		})
	})

	RegisterRoutes(app, deps)
	return app
}

func countRequests(rec *metrics.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		code := c.Response().StatusCode()
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		rec.RecordRequest(c.Route().Path, strconv.Itoa(code))
		return err
	}
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps}

	v1 := app.Group("/api/v1")
	v1.Get("/readings/recent", h.recentReadings)
	v1.Get("/readings/latest", h.latestReadings)
	v1.Get("/readings/hourly", h.hourlyAverages)
	v1.Get("/readings/daily", h.dailySummaries)
	v1.Get("/stats", h.statistics)
	v1.Get("/anomalies", h.anomalies)
	v1.Get("/predict", h.predict)
}

type handlers struct {
	deps Deps
}

type recentQuery struct {
	Window time.Duration `validate:"gte=1m,lte=24h"`
}

func (h *handlers) recentReadings(c *fiber.Ctx) error {
	q := recentQuery{Window: time.Hour}
	if s := c.Query("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid window; use a duration such as 30m or 6h")
		}
		q.Window = d
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "window must be between 1m and 24h")
	}

	since := h.deps.Now().Add(-q.Window)
	readings, err := h.deps.Store.RecentReadings(c.UserContext(), since)
	if err != nil {
		return h.internal("failed to fetch recent readings", err)
	}

	return c.JSON(fiber.Map{
		"window":   q.Window.String(),
		"since":    since.UTC(),
		"count":    len(readings),
		"readings": fromStationReadings(readings),
	})
}

func (h *handlers) latestReadings(c *fiber.Ctx) error {
	if h.deps.Cache != nil {
		cached, err := h.deps.Cache.All(c.UserContext())
		if err != nil {
			h.deps.Logger.Warn("latest-reading cache unavailable", "error", err)
		}
		if err == nil && len(cached) > 0 {
			return c.JSON(fiber.Map{
				"source":   "cache",
				"readings": fromMessages(cached),
			})
		}
	}

	readings, err := h.deps.Store.LatestReadings(c.UserContext())
	if err != nil {
		return h.internal("failed to fetch latest readings", err)
	}
	return c.JSON(fiber.Map{
		"source":   "database",
		"readings": fromStationReadings(readings),
	})
}

type hourlyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtfield=From"`
}

func (h *handlers) hourlyAverages(c *fiber.Ctx) error {
	now := h.deps.Now()
	q := hourlyQuery{From: now.Add(-24 * time.Hour), To: now}

	var err error
	if s := c.Query("from"); s != "" {
		if q.From, err = parseTime(s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if s := c.Query("to"); s != "" {
		if q.To, err = parseTime(s); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "to must be after from")
	}
	if q.To.Sub(q.From) > maxHourlyRange {
		return fiber.NewError(fiber.StatusBadRequest, "range must not exceed 31 days")
	}

	rows, err := h.deps.Store.HourlyAverages(c.UserContext(), q.From, q.To)
	if err != nil {
		return h.internal("failed to fetch hourly averages", err)
	}

	return c.JSON(fiber.Map{
		"from":   q.From.UTC(),
		"to":     q.To.UTC(),
		"hourly": fromHourly(rows),
	})
}

type dailyQuery struct {
	Days int `validate:"gte=1,lte=31"`
}

func (h *handlers) dailySummaries(c *fiber.Ctx) error {
	q := dailyQuery{Days: c.QueryInt("days", 7)}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "days must be between 1 and 31")
	}

	// The current UTC day is included.
	to := h.deps.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -q.Days)

	rows, err := h.deps.Store.DailySummaries(c.UserContext(), from, to)
	if err != nil {
		return h.internal("failed to fetch daily summaries", err)
	}

	return c.JSON(fiber.Map{
		"days":  q.Days,
		"from":  from,
		"to":    to,
		"daily": fromDaily(rows),
	})
}

func (h *handlers) statistics(c *fiber.Ctx) error {
	stats, err := h.deps.Store.GetStatistics(c.UserContext())
	if err != nil {
		return h.internal("failed to fetch statistics", err)
	}
	return c.JSON(statisticsResponse{
		TotalReadings:  stats.TotalReadings,
		ActiveStations: stats.ActiveStations,
		LastUpdate:     stats.LastUpdate,
	})
}

func (h *handlers) anomalies(c *fiber.Ctx) error {
	var since time.Time
	if s := c.Query("since"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		since = t
	}

	report, err := h.deps.Scanner.Scan(c.UserContext(), since)
	if err != nil {
		return h.internal("failed to scan readings", err)
	}

	return c.JSON(fiber.Map{
		"summary": report.Summary,
		"alerts":  report.Alerts(),
	})
}

type predictQuery struct {
	Humidity   float64 `validate:"gte=0,lte=100"`
	Pressure   float64 `validate:"gt=800,lt=1100"`
	WindSpeed  float64 `validate:"gte=0"`
	CloudCover float64 `validate:"gte=0,lte=100"`
}

func (h *handlers) predict(c *fiber.Ctx) error {
	if h.deps.LoadModel == nil {
		return fiber.NewError(fiber.StatusNotFound, "no trained model available")
	}

	var q predictQuery
	fields := []struct {
		name string
		dst  *float64
	}{
		{"humidity", &q.Humidity},
		{"pressure", &q.Pressure},
		{"wind_speed", &q.WindSpeed},
		{"cloud_cover", &q.CloudCover},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(c.Query(f.name), 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, f.name+" is required and must be a number")
		}
		*f.dst = v
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	model, err := h.deps.LoadModel()
	if errors.Is(err, predictor.ErrModelNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "no trained model available")
	}
	if err != nil {
		return h.internal("failed to load model", err)
	}

	temp, err := model.Predict(q.Humidity, q.Pressure, q.WindSpeed, q.CloudCover)
	if errors.Is(err, predictor.ErrNotFitted) {
		return fiber.NewError(fiber.StatusNotFound, "model is not trained")
	}
	if err != nil {
		return h.internal("failed to predict", err)
	}

	return c.JSON(fiber.Map{
		"humidity":    q.Humidity,
		"pressure":    q.Pressure,
		"wind_speed":  q.WindSpeed,
		"cloud_cover": q.CloudCover,
		"temperature": temp,
		"trained_at":  model.TrainedAt,
	})
}

func (h *handlers) internal(msg string, err error) error {
	h.deps.Logger.Error(msg, "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, msg)
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/metrics"
	"github.com/smukkama/caribe-weather/internal/protocol"
	"github.com/smukkama/caribe-weather/internal/weather"
	"github.com/smukkama/caribe-weather/pkg/config"
)

// courtesyShare is the largest fraction of a period spent in courtesy delays.
const courtesyShare = 10

const sinkTimeout = 5 * time.Second

// defaultStoreTimeout bounds a cycle commit when Options leaves it unset.
const defaultStoreTimeout = 30 * time.Second

// Fetcher returns the current conditions at a coordinate.
type Fetcher interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// Store persists one cycle of readings atomically.
type Store interface {
	InsertReadings(ctx context.Context, readings []*database.Reading) ([]database.RejectedReading, error)
}

// Sink receives readings after they are committed. Sink errors are logged only.
type Sink interface {
	PublishReadings(ctx context.Context, readings []*protocol.ReadingMessage) error
}

// Recorder receives per-station and per-cycle measurements.
type Recorder interface {
	RecordStation(station, outcome string)
	RecordCycle(d time.Duration)
}

// Options controls the cadence of a run.
type Options struct {
	Period        time.Duration
	Duration      time.Duration
	CourtesyDelay time.Duration
	StoreTimeout  time.Duration
}

// OptionsFromConfig maps the ingest section of the configuration.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	return Options{
		Period:        cfg.Period,
		Duration:      cfg.Duration,
		CourtesyDelay: cfg.CourtesyDelay,
		StoreTimeout:  cfg.StoreTimeout,
	}
}

// Loop polls every station once per period and stores what it gets.
type Loop struct {
	stations []config.Station
	fetcher  Fetcher
	store    Store
	sinks    []Sink
	recorder Recorder
	logger   *slog.Logger
	opts     Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Loop.
type Option func(*Loop)

// WithSinks adds destinations for committed readings.
func WithSinks(sinks ...Sink) Option {
	return func(l *Loop) {
		l.sinks = append(l.sinks, sinks...)
	}
}

// WithRecorder reports station outcomes and cycle durations.
func WithRecorder(r Recorder) Option {
	return func(l *Loop) {
		l.recorder = r
	}
}

// NewLoop creates a loop over stations in their configured order.
func NewLoop(stations []config.Station, fetcher Fetcher, store Store, opts Options, logger *slog.Logger, options ...Option) *Loop {
	l := &Loop{
		stations: stations,
		fetcher:  fetcher,
		store:    store,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// Run polls until the run duration has elapsed or ctx is cancelled.
// Cancellation is a normal stop; only store failures are returned.
func (l *Loop) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{RunID: uuid.NewString()}
	start := l.now()
	deadline := start.Add(l.opts.Duration)

	l.logger.Info("ingestion started",
		"run_id", summary.RunID,
		"stations", len(l.stations),
		"period", l.opts.Period,
		"duration", l.opts.Duration,
		"courtesy_delay", l.courtesyDelay())

	defer func() {
		summary.Elapsed = l.now().Sub(start)
		summary.RatePerMinute = ratePerMinute(summary.Inserted, summary.Elapsed)
		l.logger.Info("ingestion finished",
			"run_id", summary.RunID,
			"cycles", summary.Cycles,
			"attempted", summary.Attempted,
			"inserted", summary.Inserted,
			"elapsed", summary.Elapsed.Round(time.Millisecond),
			"rate_per_minute", fmt.Sprintf("%.2f", summary.RatePerMinute))
	}()

	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil || !l.now().Before(deadline) {
			return summary, nil
		}

		cycleStart := l.now()
		report, err := l.runCycle(ctx, summary.RunID, cycle)
		summary.Cycles++
		summary.Attempted += report.Attempted
		summary.Inserted += report.Succeeded
		if err != nil {
			return summary, err
		}

		elapsed := l.now().Sub(cycleStart)
		report.Duration = elapsed
		report.Total = summary.Inserted
		report.Remaining = max(deadline.Sub(l.now()), 0)
		summary.Reports = append(summary.Reports, report)

		if l.recorder != nil {
			l.recorder.RecordCycle(elapsed)
		}
		l.logger.Info(fmt.Sprintf("cycle %d: inserted %d/%d | total %d", cycle, report.Succeeded, report.Attempted, report.Total),
			"duration", elapsed.Round(time.Millisecond),
			"remaining", report.Remaining.Round(time.Second))

		if ctx.Err() != nil {
			return summary, nil
		}
		if elapsed > l.opts.Period {
			l.logger.Warn("cycle overran period", "cycle", cycle, "duration", elapsed, "period", l.opts.Period)
		}

		wait := min(max(l.opts.Period-elapsed, 0), report.Remaining)
		if err := l.sleep(ctx, wait); err != nil {
			return summary, nil
		}
	}
}

// runCycle attempts every station once and commits the successful readings
// together. Readings collected before a cancellation are still committed.
func (l *Loop) runCycle(ctx context.Context, runID string, cycle int) (CycleReport, error) {
	report := CycleReport{Cycle: cycle}
	delay := l.courtesyDelay()

	outcomes := make([]StationOutcome, 0, len(l.stations))
	for i, st := range l.stations {
		if ctx.Err() != nil {
			break
		}

		outcome, ok := l.fetchStation(ctx, st)
		if !ok {
			break
		}
		outcomes = append(outcomes, outcome)

		if i < len(l.stations)-1 && delay > 0 {
			if err := l.sleep(ctx, delay); err != nil {
				break
			}
		}
	}
	report.Attempted = len(outcomes)

	if err := l.commit(ctx, runID, outcomes); err != nil {
		return report, err
	}

	for _, o := range outcomes {
		if o.Status == StatusInserted {
			report.Succeeded++
		}
		if l.recorder != nil {
			l.recorder.RecordStation(o.Station.Name, o.Status.metric())
		}
	}
	return report, nil
}

// fetchStation returns false when the fetch was interrupted by cancellation;
// such an attempt does not count.
func (l *Loop) fetchStation(ctx context.Context, st config.Station) (StationOutcome, bool) {
	outcome := StationOutcome{Station: st}

	cond, err := l.fetcher.Current(ctx, st.Latitude, st.Longitude)
	if err != nil {
		if ctx.Err() != nil {
			return outcome, false
		}
		outcome.Status = StatusFetchFailed
		outcome.Err = err
		l.logger.Warn("station fetch failed", "station", st.Name, "error", err)
		return outcome, true
	}

	outcome.Status = StatusFetched
	outcome.Reading = newReading(st.ID, cond, l.now().UTC())
	return outcome, true
}

func (l *Loop) commit(ctx context.Context, runID string, outcomes []StationOutcome) error {
	var readings []*database.Reading
	for _, o := range outcomes {
		if o.Status == StatusFetched {
			readings = append(readings, o.Reading)
		}
	}
	if len(readings) == 0 {
		return nil
	}

	// The commit must survive the cancellation that may have ended the cycle,
	// but not a database that stopped answering.
	storeCtx := context.WithoutCancel(ctx)
	commitCtx, cancel := context.WithTimeout(storeCtx, l.storeTimeout())
	defer cancel()
	rejected, err := l.store.InsertReadings(commitCtx, readings)
	if err != nil {
		return fmt.Errorf("failed to store cycle readings: %w", err)
	}

	byStation := make(map[int]error, len(rejected))
	for _, r := range rejected {
		byStation[r.StationID] = r.Err
	}

	var committed []*protocol.ReadingMessage
	for i := range outcomes {
		o := &outcomes[i]
		if o.Status != StatusFetched {
			continue
		}
		if err, ok := byStation[o.Station.ID]; ok {
			o.Status = StatusRejected
			o.Err = err
			l.logger.Warn("station reading rejected", "station", o.Station.Name, "error", err)
			continue
		}
		o.Status = StatusInserted
		committed = append(committed, readingMessage(runID, o.Station, o.Reading))
	}

	l.publish(storeCtx, committed)
	return nil
}

func (l *Loop) publish(ctx context.Context, readings []*protocol.ReadingMessage) {
	if len(readings) == 0 {
		return
	}
	var errs *multierror.Error
	for _, sink := range l.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := sink.PublishReadings(sinkCtx, readings); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%T: %w", sink, err))
		}
		cancel()
	}
	if err := errs.ErrorOrNil(); err != nil {
		l.logger.Warn("failed to publish readings", "readings", len(readings), "error", err)
	}
}

func (l *Loop) storeTimeout() time.Duration {
	if l.opts.StoreTimeout > 0 {
		return l.opts.StoreTimeout
	}
	return defaultStoreTimeout
}

// courtesyDelay caps the configured delay so that the delays of one cycle
// stay within a tenth of the period.
func (l *Loop) courtesyDelay() time.Duration {
	gaps := len(l.stations) - 1
	if gaps < 1 {
		return 0
	}
	budget := l.opts.Period / courtesyShare / time.Duration(gaps)
	return min(l.opts.CourtesyDelay, budget)
}

func newReading(stationID int, c *weather.Conditions, at time.Time) *database.Reading {
	return &database.Reading{
		StationID:     stationID,
		Temperature:   c.Temperature,
		Humidity:      c.Humidity,
		Pressure:      c.Pressure,
		WindSpeed:     c.WindSpeed,
		WindDirection: c.WindDirection,
		Precipitation: c.Precipitation,
		CloudCover:    c.CloudCover,
		WeatherCode:   c.WeatherCode,
		Timestamp:     at,
	}
}

func readingMessage(runID string, st config.Station, r *database.Reading) *protocol.ReadingMessage {
	return &protocol.ReadingMessage{
		RunID:         runID,
		ReadingID:     r.ID,
		StationID:     st.ID,
		StationName:   st.Name,
		Latitude:      st.Latitude,
		Longitude:     st.Longitude,
		Temperature:   r.Temperature,
		Humidity:      r.Humidity,
		Pressure:      r.Pressure,
		WindSpeed:     r.WindSpeed,
		WindDirection: r.WindDirection,
		Precipitation: r.Precipitation,
		CloudCover:    r.CloudCover,
		WeatherCode:   r.WeatherCode,
		Timestamp:     r.Timestamp,
	}
}

func ratePerMinute(inserted int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(inserted) / elapsed.Minutes()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Recorder = (*metrics.Recorder)(nil)

package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/protocol"
)

// alertNamespace makes alert ids stable across repeated scans of the same readings.
var alertNamespace = uuid.MustParse("6f0b8f5e-3c1a-4d7e-9a57-2f4c1e8b9d30")

// Source returns readings joined with their station, ordered by timestamp.
type Source interface {
	ScanReadings(ctx context.Context, since time.Time) ([]database.ScanRow, error)
}

// Recorder counts raised alerts by kind.
type Recorder interface {
	RecordAlerts(kind string, n int)
}

// Scanner runs the anomaly rules over stored readings. It never writes.
type Scanner struct {
	source   Source
	recorder Recorder
	logger   *slog.Logger
}

// NewScanner creates a scanner. recorder may be nil.
func NewScanner(source Source, recorder Recorder, logger *slog.Logger) *Scanner {
	return &Scanner{source: source, recorder: recorder, logger: logger}
}

// Scan analyzes readings at or after since. A zero since scans everything.
func (s *Scanner) Scan(ctx context.Context, since time.Time) (*Report, error) {
	rows, err := s.source.ScanReadings(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for scan: %w", err)
	}

	report := Analyze(rows)

	if s.recorder != nil {
		s.recorder.RecordAlerts(string(protocol.AlertTemperatureJump), len(report.TemperatureJumps))
		s.recorder.RecordAlerts(string(protocol.AlertPressureAnomaly), len(report.PressureAnomalies))
		s.recorder.RecordAlerts(string(protocol.AlertExtremeWind), len(report.ExtremeWinds))
	}

	s.logger.Info("scan complete",
		"readings", report.Summary.ReadingsScanned,
		"alerts", report.Summary.AlertsRaised,
		"temperature_jumps", len(report.TemperatureJumps),
		"pressure_anomalies", len(report.PressureAnomalies),
		"extreme_winds", len(report.ExtremeWinds))

	return report, nil
}

// Lines renders one human-readable line per alert, grouped by rule.
func (r *Report) Lines() []string {
	var lines []string
	for _, j := range r.TemperatureJumps {
		lines = append(lines, j.message())
	}
	for _, p := range r.PressureAnomalies {
		lines = append(lines, p.message())
	}
	for _, w := range r.ExtremeWinds {
		lines = append(lines, w.message())
	}
	return lines
}

// Alerts converts the report into alert messages, one per flagged reading and rule.
func (r *Report) Alerts() []*protocol.AlertMessage {
	alerts := make([]*protocol.AlertMessage, 0, r.Summary.AlertsRaised)
	for _, j := range r.TemperatureJumps {
		delta := j.Delta
		alerts = append(alerts, &protocol.AlertMessage{
			AlertID:     alertID(protocol.AlertTemperatureJump, j.ReadingID),
			Kind:        protocol.AlertTemperatureJump,
			ReadingID:   j.ReadingID,
			StationID:   j.StationID,
			StationName: j.StationName,
			Value:       j.Current,
			Delta:       &delta,
			Timestamp:   j.Timestamp,
			Message:     j.message(),
		})
	}
	for _, p := range r.PressureAnomalies {
		z := p.ZScore
		alerts = append(alerts, &protocol.AlertMessage{
			AlertID:     alertID(protocol.AlertPressureAnomaly, p.ReadingID),
			Kind:        protocol.AlertPressureAnomaly,
			ReadingID:   p.ReadingID,
			StationID:   p.StationID,
			StationName: p.StationName,
			Value:       p.Pressure,
			ZScore:      &z,
			Timestamp:   p.Timestamp,
			Message:     p.message(),
		})
	}
	for _, w := range r.ExtremeWinds {
		alerts = append(alerts, &protocol.AlertMessage{
			AlertID:     alertID(protocol.AlertExtremeWind, w.ReadingID),
			Kind:        protocol.AlertExtremeWind,
			ReadingID:   w.ReadingID,
			StationID:   w.StationID,
			StationName: w.StationName,
			Value:       w.WindSpeed,
			Timestamp:   w.Timestamp,
			Message:     w.message(),
		})
	}
	return alerts
}

func (j TemperatureJump) message() string {
	return fmt.Sprintf("[%s] %s %s: temperature %.1f°C -> %.1f°C (delta %+.1f°C)",
		protocol.AlertTemperatureJump, j.StationName, j.Timestamp.UTC().Format(time.RFC3339),
		j.Previous, j.Current, j.Delta)
}

func (p PressureAnomaly) message() string {
	return fmt.Sprintf("[%s] %s %s: pressure %.1f hPa (z=%.2f)",
		protocol.AlertPressureAnomaly, p.StationName, p.Timestamp.UTC().Format(time.RFC3339),
		p.Pressure, p.ZScore)
}

func (w ExtremeWind) message() string {
	return fmt.Sprintf("[%s] %s %s: wind %.1f m/s",
		protocol.AlertExtremeWind, w.StationName, w.Timestamp.UTC().Format(time.RFC3339),
		w.WindSpeed)
}

func alertID(kind protocol.AlertKind, readingID int64) string {
	return uuid.NewSHA1(alertNamespace, []byte(string(kind)+":"+strconv.FormatInt(readingID, 10))).String()
}

package anomaly

import (
	"cmp"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/smukkama/caribe-weather/internal/database"
)

// Rule thresholds. Wind speed is in m/s.
const (
	TemperatureJumpThreshold = 5.0
	PressureZThreshold       = 2.0
	ExtremeWindThreshold     = 15.0
)

// TemperatureJump is a change of more than TemperatureJumpThreshold between
// consecutive readings of one station. ReadingID is the later reading.
type TemperatureJump struct {
	ReadingID   int64
	StationID   int
	StationName string
	Timestamp   time.Time
	Previous    float64
	Current     float64

	// Delta is Current minus Previous.
	Delta float64
}

// PressureAnomaly is a reading whose pressure lies more than
// PressureZThreshold standard deviations from the mean of the scan.
type PressureAnomaly struct {
	ReadingID   int64
	StationID   int
	StationName string
	Timestamp   time.Time
	Pressure    float64
	ZScore      float64
}

// ExtremeWind is a reading with wind speed above ExtremeWindThreshold.
type ExtremeWind struct {
	ReadingID   int64
	StationID   int
	StationName string
	Timestamp   time.Time
	WindSpeed   float64
}

// Summary holds the scan totals. A statistic is nil when no reading carried a value for it.
type Summary struct {
	ReadingsScanned int      `json:"readings_scanned"`
	AlertsRaised    int      `json:"alerts_raised"`
	TemperatureMean *float64 `json:"temperature_mean"`
	TemperatureMin  *float64 `json:"temperature_min"`
	TemperatureMax  *float64 `json:"temperature_max"`
	PressureMean    *float64 `json:"pressure_mean"`
	WindMean        *float64 `json:"wind_mean"`
}

// Report is the outcome of one scan. The three alert sets are independent;
// a reading may appear in more than one.
type Report struct {
	TemperatureJumps  []TemperatureJump
	PressureAnomalies []PressureAnomaly
	ExtremeWinds      []ExtremeWind
	Summary           Summary
}

// Analyze applies every rule to rows. It does not modify rows.
func Analyze(rows []database.ScanRow) *Report {
	r := &Report{
		TemperatureJumps:  temperatureJumps(rows),
		PressureAnomalies: pressureAnomalies(rows),
		ExtremeWinds:      extremeWinds(rows),
	}
	r.Summary = summarize(rows)
	r.Summary.AlertsRaised = len(r.TemperatureJumps) + len(r.PressureAnomalies) + len(r.ExtremeWinds)
	return r
}

func temperatureJumps(rows []database.ScanRow) []TemperatureJump {
	byStation := make(map[int][]database.ScanRow)
	for _, row := range rows {
		byStation[row.StationID] = append(byStation[row.StationID], row)
	}

	var jumps []TemperatureJump
	for _, series := range byStation {
		slices.SortStableFunc(series, compareRows)
		for i := 1; i < len(series); i++ {
			prev, cur := series[i-1], series[i]
			if prev.Temperature == nil || cur.Temperature == nil {
				continue
			}
			delta := *cur.Temperature - *prev.Temperature
			if math.Abs(delta) <= TemperatureJumpThreshold {
				continue
			}
			jumps = append(jumps, TemperatureJump{
				ReadingID:   cur.ReadingID,
				StationID:   cur.StationID,
				StationName: cur.StationName,
				Timestamp:   cur.Timestamp,
				Previous:    *prev.Temperature,
				Current:     *cur.Temperature,
				Delta:       delta,
			})
		}
	}

	slices.SortFunc(jumps, func(a, b TemperatureJump) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ReadingID, b.ReadingID))
	})
	return jumps
}

func pressureAnomalies(rows []database.ScanRow) []PressureAnomaly {
	values := present(rows, func(r database.ScanRow) *float64 { return r.Pressure })
	if len(values) < 2 || floats.Min(values) == floats.Max(values) {
		return nil
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}

	var out []PressureAnomaly
	for _, row := range rows {
		if row.Pressure == nil {
			continue
		}
		z := math.Abs(*row.Pressure-mean) / std
		if z > PressureZThreshold {
			out = append(out, PressureAnomaly{
				ReadingID:   row.ReadingID,
				StationID:   row.StationID,
				StationName: row.StationName,
				Timestamp:   row.Timestamp,
				Pressure:    *row.Pressure,
				ZScore:      z,
			})
		}
	}
	return out
}

func extremeWinds(rows []database.ScanRow) []ExtremeWind {
	var out []ExtremeWind
	for _, row := range rows {
		if row.WindSpeed == nil || *row.WindSpeed <= ExtremeWindThreshold {
			continue
		}
		out = append(out, ExtremeWind{
			ReadingID:   row.ReadingID,
			StationID:   row.StationID,
			StationName: row.StationName,
			Timestamp:   row.Timestamp,
			WindSpeed:   *row.WindSpeed,
		})
	}
	return out
}

func summarize(rows []database.ScanRow) Summary {
	s := Summary{ReadingsScanned: len(rows)}

	if temps := present(rows, func(r database.ScanRow) *float64 { return r.Temperature }); len(temps) > 0 {
		s.TemperatureMean = ptr(stat.Mean(temps, nil))
		s.TemperatureMin = ptr(floats.Min(temps))
		s.TemperatureMax = ptr(floats.Max(temps))
	}
	if pressures := present(rows, func(r database.ScanRow) *float64 { return r.Pressure }); len(pressures) > 0 {
		s.PressureMean = ptr(stat.Mean(pressures, nil))
	}
	if winds := present(rows, func(r database.ScanRow) *float64 { return r.WindSpeed }); len(winds) > 0 {
		s.WindMean = ptr(stat.Mean(winds, nil))
	}
	return s
}

func present(rows []database.ScanRow, field func(database.ScanRow) *float64) []float64 {
	var out []float64
	for _, row := range rows {
		if v := field(row); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func compareRows(a, b database.ScanRow) int {
	return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ReadingID, b.ReadingID))
}

func ptr(v float64) *float64 { return &v }

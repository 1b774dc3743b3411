package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const stationReadingColumns = `
	cw.reading_id,
	cw.station_id,
	cw.temperature,
	cw.humidity,
	cw.pressure,
	cw.wind_speed,
	cw.wind_direction,
	cw.precipitation,
	cw.cloud_cover,
	cw.weather_code,
	cw.timestamp,
	ws.city_name,
	ws.department,
	ws.latitude,
	ws.longitude
`

// RecentReadings returns readings newer than since, newest first
func (db *DB) RecentReadings(ctx context.Context, since time.Time) ([]StationReading, error) {
	query := `
		SELECT` + stationReadingColumns + `
		FROM current_weather cw
		JOIN weather_stations ws ON cw.station_id = ws.station_id
		WHERE cw.timestamp >= $1
		ORDER BY cw.timestamp DESC, cw.reading_id DESC
	`

	rows, err := db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	return scanStationReadings(rows)
}

// LatestReadings returns the most recent reading of every station that has one
func (db *DB) LatestReadings(ctx context.Context) ([]StationReading, error) {
	query := `
		SELECT DISTINCT ON (ws.station_id)` + stationReadingColumns + `
		FROM current_weather cw
		JOIN weather_stations ws ON cw.station_id = ws.station_id
		ORDER BY ws.station_id, cw.timestamp DESC, cw.reading_id DESC
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	return scanStationReadings(rows)
}

func scanStationReadings(rows *sql.Rows) ([]StationReading, error) {
	defer rows.Close()

	var out []StationReading
	for rows.Next() {
		var r StationReading
		if err := rows.Scan(
			&r.ID,
			&r.StationID,
			&r.Temperature,
			&r.Humidity,
			&r.Pressure,
			&r.WindSpeed,
			&r.WindDirection,
			&r.Precipitation,
			&r.CloudCover,
			&r.WeatherCode,
			&r.Timestamp,
			&r.StationName,
			&r.Region,
			&r.Latitude,
			&r.Longitude,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// GetStatistics returns the totals shown on the dashboard header
func (db *DB) GetStatistics(ctx context.Context) (*Statistics, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT station_id), MAX(timestamp)
		FROM current_weather
	`

	var stats Statistics
	if err := db.QueryRowContext(ctx, query).Scan(
		&stats.TotalReadings,
		&stats.ActiveStations,
		&stats.LastUpdate,
	); err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}

	return &stats, nil
}

// HourlyAverages aggregates readings in [from, to) per station and hour
func (db *DB) HourlyAverages(ctx context.Context, from, to time.Time) ([]HourlyAverage, error) {
	query := `
		SELECT
			cw.station_id,
			ws.city_name,
			date_trunc('hour', cw.timestamp) AS hour,
			AVG(cw.temperature)::float8,
			AVG(cw.humidity)::float8,
			AVG(cw.pressure)::float8,
			AVG(cw.wind_speed)::float8,
			SUM(cw.precipitation)::float8,
			COUNT(*)
		FROM current_weather cw
		JOIN weather_stations ws ON cw.station_id = ws.station_id
		WHERE cw.timestamp >= $1 AND cw.timestamp < $2
		GROUP BY cw.station_id, ws.city_name, hour
		ORDER BY hour, cw.station_id
	`

	rows, err := db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate hourly data: %w", err)
	}
	defer rows.Close()

	var out []HourlyAverage
	for rows.Next() {
		var h HourlyAverage
		if err := rows.Scan(
			&h.StationID,
			&h.StationName,
			&h.Hour,
			&h.AvgTemp,
			&h.AvgHumidity,
			&h.AvgPressure,
			&h.AvgWind,
			&h.TotalPrecip,
			&h.SampleCount,
		); err != nil {
			return nil, err
		}
		out = append(out, h)
	}

	return out, rows.Err()
}

// DailySummaries returns per-station daily extremes for readings in [from, to).
// Timestamps are stored in UTC so days are UTC days.
func (db *DB) DailySummaries(ctx context.Context, from, to time.Time) ([]DailySummary, error) {
	query := `
		SELECT
			cw.station_id,
			ws.city_name,
			date_trunc('day', cw.timestamp) AS day,
			MIN(cw.temperature)::float8,
			MAX(cw.temperature)::float8,
			MIN(cw.humidity),
			MAX(cw.humidity),
			MAX(cw.wind_speed)::float8,
			SUM(cw.precipitation)::float8,
			COUNT(*)
		FROM current_weather cw
		JOIN weather_stations ws ON cw.station_id = ws.station_id
		WHERE cw.timestamp >= $1 AND cw.timestamp < $2
		GROUP BY cw.station_id, ws.city_name, day
		ORDER BY day, cw.station_id
	`

	rows, err := db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily data: %w", err)
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(
			&d.StationID,
			&d.StationName,
			&d.Date,
			&d.MinTemp,
			&d.MaxTemp,
			&d.MinHumidity,
			&d.MaxHumidity,
			&d.MaxWind,
			&d.TotalPrecip,
			&d.SampleCount,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	return out, rows.Err()
}

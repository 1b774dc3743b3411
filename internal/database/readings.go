package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// RejectedReading is a reading the server refused inside an otherwise
// healthy transaction (constraint or data errors).
type RejectedReading struct {
	StationID int
	Err       error
}

// InsertReadings writes one cycle of readings in a single transaction.
// Each row runs under its own savepoint so a rejected row does not abort
// the others. Rejected rows are reported, not returned as an error; any
// other failure rolls the whole cycle back and is returned.
// On success the generated ids are written back into the readings.
func (db *DB) InsertReadings(ctx context.Context, readings []*Reading) ([]RejectedReading, error) {
	if len(readings) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO current_weather (
			station_id, temperature, humidity, pressure, wind_speed, wind_direction,
			precipitation, cloud_cover, weather_code, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING reading_id
	`

	var rejected []RejectedReading
	for _, r := range readings {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT reading"); err != nil {
			return nil, fmt.Errorf("failed to set savepoint: %w", err)
		}

		err := tx.QueryRowContext(
			ctx,
			query,
			r.StationID,
			r.Temperature,
			r.Humidity,
			r.Pressure,
			r.WindSpeed,
			r.WindDirection,
			r.Precipitation,
			r.CloudCover,
			r.WeatherCode,
			r.Timestamp,
		).Scan(&r.ID)

		if err != nil {
			if !IsRowError(err) {
				return nil, fmt.Errorf("failed to insert reading for station %d: %w", r.StationID, err)
			}
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT reading"); rbErr != nil {
				return nil, fmt.Errorf("failed to roll back savepoint: %w", rbErr)
			}
			rejected = append(rejected, RejectedReading{StationID: r.StationID, Err: err})
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT reading"); err != nil {
			return nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit readings: %w", err)
	}

	return rejected, nil
}

// IsRowError reports whether err is a server-side rejection of a single
// statement, as opposed to a connection or server availability problem.
func IsRowError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	switch pqErr.Code.Class() {
	case "08", "53", "57", "58", "XX":
		// connection exception, insufficient resources, operator
		// intervention, system error, internal error
		return false
	}
	return true
}

// ScanReadings returns readings at or after since joined with their
// station name, ordered by timestamp. A zero since returns everything.
func (db *DB) ScanReadings(ctx context.Context, since time.Time) ([]ScanRow, error) {
	query := `
		SELECT
			cw.reading_id,
			cw.station_id,
			ws.city_name,
			cw.temperature,
			cw.pressure,
			cw.wind_speed,
			cw.timestamp
		FROM current_weather cw
		JOIN weather_stations ws ON cw.station_id = ws.station_id
		WHERE cw.timestamp >= $1
		ORDER BY cw.timestamp, cw.reading_id
	`

	rows, err := db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []ScanRow
	for rows.Next() {
		var r ScanRow
		if err := rows.Scan(
			&r.ReadingID,
			&r.StationID,
			&r.StationName,
			&r.Temperature,
			&r.Pressure,
			&r.WindSpeed,
			&r.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// TrainingSamples returns readings that carry every predictor feature and
// the temperature target, in chronological order.
func (db *DB) TrainingSamples(ctx context.Context) ([]TrainingSample, error) {
	query := `
		SELECT humidity, pressure, wind_speed, cloud_cover, temperature
		FROM current_weather
		WHERE humidity IS NOT NULL
		  AND pressure IS NOT NULL
		  AND wind_speed IS NOT NULL
		  AND cloud_cover IS NOT NULL
		  AND temperature IS NOT NULL
		ORDER BY timestamp, reading_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query training data: %w", err)
	}
	defer rows.Close()

	var out []TrainingSample
	for rows.Next() {
		var s TrainingSample
		if err := rows.Scan(&s.Humidity, &s.Pressure, &s.WindSpeed, &s.CloudCover, &s.Temperature); err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

package database

import (
	"context"
	"fmt"
)

// SeedStations inserts stations that are not yet present. Existing rows are
// never updated. Returns the number of rows actually inserted.
func (db *DB) SeedStations(ctx context.Context, stations []Station) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO weather_stations (station_id, city_name, department, latitude, longitude, elevation)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id) DO NOTHING
	`

	inserted := 0
	for _, s := range stations {
		result, err := tx.ExecContext(ctx, query, s.ID, s.Name, s.Region, s.Latitude, s.Longitude, s.Elevation)
		if err != nil {
			return 0, fmt.Errorf("failed to insert station %s: %w", s.Name, err)
		}
		n, _ := result.RowsAffected()
		inserted += int(n)
	}

	// Explicit ids bypass the sequence; move it past them
	if _, err := tx.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('weather_stations', 'station_id'),
		              COALESCE((SELECT MAX(station_id) FROM weather_stations), 1))
	`); err != nil {
		return 0, fmt.Errorf("failed to advance station sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stations: %w", err)
	}

	return inserted, nil
}

// ListStations returns all stations ordered by id
func (db *DB) ListStations(ctx context.Context) ([]Station, error) {
	query := `
		SELECT station_id, city_name, department, latitude, longitude, elevation, created_at
		FROM weather_stations
		ORDER BY station_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var s Station
		if err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Region,
			&s.Latitude,
			&s.Longitude,
			&s.Elevation,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	return stations, rows.Err()
}

package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = sqlDB.Close()
	})
	return New(sqlDB), mock
}

func ptr[T any](v T) *T { return &v }

func TestServerVersion(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version()")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.2"))

	version, err := db.ServerVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL 16.2", version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTables(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("current_weather").
			AddRow("weather_forecasts").
			AddRow("weather_stations"))

	tables, err := db.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"current_weather", "weather_forecasts", "weather_stations"}, tables)
}

func TestSeedStations(t *testing.T) {
	db, mock := setupMock(t)

	stations := []Station{
		{ID: 1, Name: "Santa Marta", Region: ptr("Magdalena"), Latitude: ptr(11.2408), Longitude: ptr(-74.2120), Elevation: ptr(2)},
		{ID: 2, Name: "Barranquilla", Region: ptr("Atlantico"), Latitude: ptr(10.9685), Longitude: ptr(-74.7813), Elevation: ptr(18)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO weather_stations").
		WithArgs(1, "Santa Marta", "Magdalena", 11.2408, -74.2120, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO weather_stations").
		WithArgs(2, "Barranquilla", "Atlantico", 10.9685, -74.7813, 18).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SELECT setval").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := db.SeedStations(context.Background(), stations)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted, "existing station must not count as inserted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStations(t *testing.T) {
	db, mock := setupMock(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM weather_stations").
		WillReturnRows(sqlmock.NewRows([]string{"station_id", "city_name", "department", "latitude", "longitude", "elevation", "created_at"}).
			AddRow(1, "Santa Marta", "Magdalena", 11.2408, -74.2120, 2, created).
			AddRow(9, "Nowhere", nil, nil, nil, nil, created))

	stations, err := db.ListStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Magdalena", *stations[0].Region)
	assert.Nil(t, stations[1].Region)
	assert.Nil(t, stations[1].Elevation)
}

func TestInsertReadings_AllSucceed(t *testing.T) {
	db, mock := setupMock(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	readings := []*Reading{
		{StationID: 1, Temperature: ptr(29.1), Humidity: ptr(78), Pressure: ptr(1011.2), Timestamp: ts},
		{StationID: 2, Temperature: ptr(30.4), Timestamp: ts},
	}

	mock.ExpectBegin()
	for i, r := range readings {
		mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("INSERT INTO current_weather").
			WithArgs(r.StationID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), ts).
			WillReturnRows(sqlmock.NewRows([]string{"reading_id"}).AddRow(int64(100 + i)))
		mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectCommit()

	rejected, err := db.InsertReadings(context.Background(), readings)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Equal(t, int64(100), readings[0].ID)
	assert.Equal(t, int64(101), readings[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReadings_RejectedRowKeepsOthers(t *testing.T) {
	db, mock := setupMock(t)
	ts := time.Now().UTC()

	readings := []*Reading{
		{StationID: 1, Timestamp: ts},
		{StationID: 99, Timestamp: ts},
		{StationID: 3, Timestamp: ts},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO current_weather").
		WillReturnRows(sqlmock.NewRows([]string{"reading_id"}).AddRow(int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO current_weather").
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO current_weather").
		WillReturnRows(sqlmock.NewRows([]string{"reading_id"}).AddRow(int64(2)))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rejected, err := db.InsertReadings(context.Background(), readings)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, 99, rejected[0].StationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReadings_ConnectionFailureIsFatal(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT reading")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO current_weather").
		WillReturnError(errors.New("read tcp: connection reset by peer"))
	mock.ExpectRollback()

	_, err := db.InsertReadings(context.Background(), []*Reading{{StationID: 1, Timestamp: time.Now()}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReadings_BeginFailure(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("dial tcp: connection refused"))

	_, err := db.InsertReadings(context.Background(), []*Reading{{StationID: 1}})
	assert.ErrorContains(t, err, "begin transaction")
}

func TestInsertReadings_Empty(t *testing.T) {
	db, mock := setupMock(t)

	rejected, err := db.InsertReadings(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, rejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRowError(t *testing.T) {
	assert.True(t, IsRowError(&pq.Error{Code: "23503"}))
	assert.True(t, IsRowError(&pq.Error{Code: "22003"}))
	assert.False(t, IsRowError(&pq.Error{Code: "08006"}))
	assert.False(t, IsRowError(&pq.Error{Code: "57P01"}))
	assert.False(t, IsRowError(errors.New("timeout")))
}

func TestScanReadings(t *testing.T) {
	db, mock := setupMock(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	since := ts.Add(-time.Hour)

	mock.ExpectQuery("FROM current_weather cw").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"reading_id", "station_id", "city_name", "temperature", "pressure", "wind_speed", "timestamp"}).
			AddRow(int64(1), 1, "Santa Marta", 29.5, 1011.0, 4.2, ts).
			AddRow(int64(2), 2, "Barranquilla", nil, nil, nil, ts))

	rows, err := db.ScanReadings(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 29.5, *rows[0].Temperature)
	assert.Nil(t, rows[1].Pressure)
}

func TestTrainingSamples(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery("AND cloud_cover IS NOT NULL").
		WillReturnRows(sqlmock.NewRows([]string{"humidity", "pressure", "wind_speed", "cloud_cover", "temperature"}).
			AddRow(80, 1010.5, 3.1, 40, 28.2))

	samples, err := db.TrainingSamples(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, TrainingSample{Humidity: 80, Pressure: 1010.5, WindSpeed: 3.1, CloudCover: 40, Temperature: 28.2}, samples[0])
}

func TestGetStatistics(t *testing.T) {
	db, mock := setupMock(t)
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("COUNT\\(DISTINCT station_id\\)").
		WillReturnRows(sqlmock.NewRows([]string{"count", "count", "max"}).AddRow(int64(40), 8, last))

	stats, err := db.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(40), stats.TotalReadings)
	assert.Equal(t, 8, stats.ActiveStations)
	assert.Equal(t, last, *stats.LastUpdate)
}

func TestGetStatistics_EmptyTable(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery("COUNT\\(DISTINCT station_id\\)").
		WillReturnRows(sqlmock.NewRows([]string{"count", "count", "max"}).AddRow(int64(0), 0, nil))

	stats, err := db.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalReadings)
	assert.Nil(t, stats.LastUpdate)
}

func TestLatestReadings(t *testing.T) {
	db, mock := setupMock(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	columns := []string{"reading_id", "station_id", "temperature", "humidity", "pressure", "wind_speed",
		"wind_direction", "precipitation", "cloud_cover", "weather_code", "timestamp",
		"city_name", "department", "latitude", "longitude"}
	mock.ExpectQuery("SELECT DISTINCT ON \\(ws.station_id\\)").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(7), 1, 29.0, 75, 1010.0, 5.5, 90, 0.0, 20, 1, ts, "Santa Marta", "Magdalena", 11.2408, -74.2120))

	readings, err := db.LatestReadings(context.Background())
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "Santa Marta", readings[0].StationName)
	assert.Equal(t, 75, *readings[0].Humidity)
	assert.Equal(t, int64(7), readings[0].ID)
}

func TestRecentReadings_QueryError(t *testing.T) {
	db, mock := setupMock(t)

	mock.ExpectQuery("FROM current_weather cw").WillReturnError(errors.New("boom"))

	_, err := db.RecentReadings(context.Background(), time.Now())
	assert.ErrorContains(t, err, "recent readings")
}

func TestHourlyAverages(t *testing.T) {
	db, mock := setupMock(t)
	hour := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("date_trunc\\('hour', cw.timestamp\\)").
		WithArgs(hour, hour.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"station_id", "city_name", "hour", "avg", "avg", "avg", "avg", "sum", "count"}).
			AddRow(1, "Santa Marta", hour, 29.2, 77.5, 1010.8, 4.0, 0.2, 60))

	out, err := db.HourlyAverages(context.Background(), hour, hour.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 60, out[0].SampleCount)
	assert.Equal(t, 29.2, *out[0].AvgTemp)
}

func TestDailySummaries(t *testing.T) {
	db, mock := setupMock(t)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("date_trunc\\('day', cw.timestamp\\)").
		WithArgs(day, day.AddDate(0, 0, 1)).
		WillReturnRows(sqlmock.NewRows([]string{"station_id", "city_name", "day", "min", "max", "min", "max", "max", "sum", "count"}).
			AddRow(2, "Barranquilla", day, 25.1, 33.4, 58, 91, 9.5, nil, 1440))

	out, err := db.DailySummaries(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Barranquilla", out[0].StationName)
	assert.Equal(t, 33.4, *out[0].MaxTemp)
	assert.Equal(t, 58, *out[0].MinHumidity)
	assert.Nil(t, out[0].TotalPrecip)
	assert.Equal(t, 1440, out[0].SampleCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

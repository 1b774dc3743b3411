package database

import (
	"time"
)

// Station represents a weather sampling location
type Station struct {
	ID        int
	Name      string
	Region    *string
	Latitude  *float64
	Longitude *float64
	Elevation *int
	CreatedAt time.Time
}

// Reading represents one current-conditions observation for a station
type Reading struct {
	ID            int64
	StationID     int
	Temperature   *float64
	Humidity      *int
	Pressure      *float64
	WindSpeed     *float64
	WindDirection *int
	Precipitation *float64
	CloudCover    *int
	WeatherCode   *int
	Timestamp     time.Time
}

// StationReading is a reading joined with the identity of its station
type StationReading struct {
	Reading
	StationName string
	Region      *string
	Latitude    *float64
	Longitude   *float64
}

// ScanRow is the projection the anomaly scanner works on
type ScanRow struct {
	ReadingID   int64
	StationID   int
	StationName string
	Temperature *float64
	Pressure    *float64
	WindSpeed   *float64
	Timestamp   time.Time
}

// TrainingSample is one complete row for the temperature predictor
type TrainingSample struct {
	Humidity    float64
	Pressure    float64
	WindSpeed   float64
	CloudCover  float64
	Temperature float64
}

// HourlyAverage is an hourly per-station mean of the main measurements
type HourlyAverage struct {
	StationID   int
	StationName string
	Hour        time.Time
	AvgTemp     *float64
	AvgHumidity *float64
	AvgPressure *float64
	AvgWind     *float64
	TotalPrecip *float64
	SampleCount int
}

// Statistics summarizes the readings table
type Statistics struct {
	TotalReadings  int64
	ActiveStations int
	LastUpdate     *time.Time
}

// DailySummary holds per-station daily extremes of the main measurements
type DailySummary struct {
	StationID   int
	StationName string
	Date        time.Time
	MinTemp     *float64
	MaxTemp     *float64
	MinHumidity *int
	MaxHumidity *int
	MaxWind     *float64
	TotalPrecip *float64
	SampleCount int
}

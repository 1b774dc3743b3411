package api

import (
	"time"

	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/protocol"
	"github.com/smukkama/caribe-weather/internal/weather"
)

type readingResponse struct {
	ReadingID     int64     `json:"reading_id"`
	StationID     int       `json:"station_id"`
	StationName   string    `json:"station_name"`
	Region        *string   `json:"region,omitempty"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	Temperature   *float64  `json:"temperature"`
	Humidity      *int      `json:"humidity"`
	Pressure      *float64  `json:"pressure"`
	WindSpeed     *float64  `json:"wind_speed"`
	WindDirection *int      `json:"wind_direction"`
	Precipitation *float64  `json:"precipitation"`
	CloudCover    *int      `json:"cloud_cover"`
	WeatherCode   *int      `json:"weather_code"`
	Condition     string    `json:"condition,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type hourlyResponse struct {
	StationID   int       `json:"station_id"`
	StationName string    `json:"station_name"`
	Hour        time.Time `json:"hour"`
	AvgTemp     *float64  `json:"avg_temperature"`
	AvgHumidity *float64  `json:"avg_humidity"`
	AvgPressure *float64  `json:"avg_pressure"`
	AvgWind     *float64  `json:"avg_wind_speed"`
	TotalPrecip *float64  `json:"total_precipitation"`
	SampleCount int       `json:"sample_count"`
}

type dailyResponse struct {
	StationID   int       `json:"station_id"`
	StationName string    `json:"station_name"`
	Date        time.Time `json:"date"`
	MinTemp     *float64  `json:"min_temperature"`
	MaxTemp     *float64  `json:"max_temperature"`
	MinHumidity *int      `json:"min_humidity"`
	MaxHumidity *int      `json:"max_humidity"`
	MaxWind     *float64  `json:"max_wind_speed"`
	TotalPrecip *float64  `json:"total_precipitation"`
	SampleCount int       `json:"sample_count"`
}

type statisticsResponse struct {
	TotalReadings  int64      `json:"total_readings"`
	ActiveStations int        `json:"active_stations"`
	LastUpdate     *time.Time `json:"last_update"`
}

func condition(code *int) string {
	if code == nil {
		return ""
	}
	return string(weather.Describe(*code))
}

func fromStationReadings(rows []database.StationReading) []readingResponse {
	out := make([]readingResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, readingResponse{
			ReadingID:     r.ID,
			StationID:     r.StationID,
			StationName:   r.StationName,
			Region:        r.Region,
			Latitude:      r.Latitude,
			Longitude:     r.Longitude,
			Temperature:   r.Temperature,
			Humidity:      r.Humidity,
			Pressure:      r.Pressure,
			WindSpeed:     r.WindSpeed,
			WindDirection: r.WindDirection,
			Precipitation: r.Precipitation,
			CloudCover:    r.CloudCover,
			WeatherCode:   r.WeatherCode,
			Condition:     condition(r.WeatherCode),
			Timestamp:     r.Timestamp,
		})
	}
	return out
}

func fromMessages(msgs []*protocol.ReadingMessage) []readingResponse {
	out := make([]readingResponse, 0, len(msgs))
	for _, m := range msgs {
		lat, lon := m.Latitude, m.Longitude
		out = append(out, readingResponse{
			ReadingID:     m.ReadingID,
			StationID:     m.StationID,
			StationName:   m.StationName,
			Latitude:      &lat,
			Longitude:     &lon,
			Temperature:   m.Temperature,
			Humidity:      m.Humidity,
			Pressure:      m.Pressure,
			WindSpeed:     m.WindSpeed,
			WindDirection: m.WindDirection,
			Precipitation: m.Precipitation,
			CloudCover:    m.CloudCover,
			WeatherCode:   m.WeatherCode,
			Condition:     condition(m.WeatherCode),
			Timestamp:     m.Timestamp,
		})
	}
	return out
}

func fromHourly(rows []database.HourlyAverage) []hourlyResponse {
	out := make([]hourlyResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, hourlyResponse(r))
	}
	return out
}

func fromDaily(rows []database.DailySummary) []dailyResponse {
	out := make([]dailyResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dailyResponse(r))
	}
	return out
}

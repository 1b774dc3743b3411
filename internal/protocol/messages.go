package protocol

import (
	"encoding/json"
	"time"
)

// ReadingMessage is a committed reading as published to Kafka and cached in Redis
type ReadingMessage struct {
	RunID         string    `json:"run_id"`
	ReadingID     int64     `json:"reading_id"`
	StationID     int       `json:"station_id"`
	StationName   string    `json:"station_name"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Temperature   *float64  `json:"temperature"`
	Humidity      *int      `json:"humidity"`
	Pressure      *float64  `json:"pressure"`
	WindSpeed     *float64  `json:"wind_speed"`
	WindDirection *int      `json:"wind_direction"`
	Precipitation *float64  `json:"precipitation"`
	CloudCover    *int      `json:"cloud_cover"`
	WeatherCode   *int      `json:"weather_code"`
	Timestamp     time.Time `json:"timestamp"`
}

// AlertKind names the rule that raised an alert
type AlertKind string

const (
	AlertTemperatureJump AlertKind = "TEMPERATURE_JUMP"
	AlertPressureAnomaly AlertKind = "PRESSURE_ANOMALY"
	AlertExtremeWind     AlertKind = "EXTREME_WIND"
)

// AlertMessage is the message format for anomaly alerts
type AlertMessage struct {
	AlertID     string    `json:"alert_id"`
	Kind        AlertKind `json:"kind"`
	ReadingID   int64     `json:"reading_id"`
	StationID   int       `json:"station_id"`
	StationName string    `json:"station_name"`
	Value       float64   `json:"value"`
	Delta       *float64  `json:"delta,omitempty"`
	ZScore      *float64  `json:"z_score,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
}

// EncodeReadingMessage encodes a ReadingMessage to JSON
func EncodeReadingMessage(msg *ReadingMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeReadingMessage decodes JSON to ReadingMessage
func DecodeReadingMessage(data []byte) (*ReadingMessage, error) {
	var msg ReadingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeAlertMessage encodes an AlertMessage to JSON
func EncodeAlertMessage(alert *AlertMessage) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeAlertMessage decodes JSON to AlertMessage
func DecodeAlertMessage(data []byte) (*AlertMessage, error) {
	var alert AlertMessage
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

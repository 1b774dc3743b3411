package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "latitude": 11.25,
  "longitude": -74.25,
  "current": {
    "time": "2025-03-01T12:00",
    "interval": 900,
    "temperature_2m": 29.4,
    "relative_humidity_2m": 74,
    "pressure_msl": 1011.3,
    "wind_speed_10m": 6.2,
    "wind_direction_10m": 45,
    "precipitation": 0.0,
    "cloud_cover": 25,
    "weather_code": null
  }
}`

func TestClient_Current(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "11.2408", q.Get("latitude"))
		assert.Equal(t, "-74.212", q.Get("longitude"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Equal(t, strings.Join(CurrentFields, ","), q.Get("current"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	cond, err := c.Current(context.Background(), 11.2408, -74.2120)
	require.NoError(t, err)

	require.NotNil(t, cond.Temperature)
	assert.Equal(t, 29.4, *cond.Temperature)
	assert.Equal(t, 74, *cond.Humidity)
	assert.Equal(t, 1011.3, *cond.Pressure)
	assert.Equal(t, 45, *cond.WindDirection)
	assert.Nil(t, cond.WeatherCode, "null fields stay nil")
}

func TestClient_MalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, "oops", ErrUnexpectedStatus},
		{"bad request", http.StatusBadRequest, `{"error":true}`, ErrUnexpectedStatus},
		{"not json", http.StatusOK, "<html>", ErrMalformedResponse},
		{"missing current", http.StatusOK, `{"latitude": 1}`, ErrMalformedResponse},
		{"wrong type", http.StatusOK, `{"current": {"relative_humidity_2m": "wet"}}`, ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Current(context.Background(), 0, 0)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Current(context.Background(), 0, 0)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.Current(context.Background(), 0, 0)
		require.ErrorIs(t, err, ErrUnexpectedStatus)
	}

	_, err := c.Current(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 5, calls.Load(), "open circuit must not reach the server")
}

func TestClient_CancelledRequestsDoNotTripCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		_, err := c.Current(ctx, 0, 0)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrCircuitOpen)
	}

	_, err := c.Current(context.Background(), 0, 0)
	assert.NoError(t, err)
}

func TestClient_StationErrorsDoNotTripCircuit(t *testing.T) {
	var healthy atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("latitude") {
		case "1":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":true,"reason":"Latitude must be in range"}`))
		case "2":
			_, _ = w.Write([]byte(`{"current":`))
		default:
			healthy.Add(1)
			_, _ = w.Write([]byte(sampleResponse))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	for i := 0; i < 5; i++ {
		_, err := c.Current(context.Background(), 1, 0)
		require.ErrorIs(t, err, ErrUnexpectedStatus)
		_, err = c.Current(context.Background(), 2, 0)
		require.ErrorIs(t, err, ErrMalformedResponse)
	}

	for _, lat := range []float64{10.1, 10.2, 10.3} {
		got, err := c.Current(context.Background(), lat, 0)
		require.NoError(t, err, "lat=%v", lat)
		assert.NotNil(t, got.Temperature)
	}
	assert.EqualValues(t, 3, healthy.Load())
}

func TestStatusError(t *testing.T) {
	err := error(&StatusError{Code: 404, Body: "not found"})
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, "unexpected status code: 404: not found", err.Error())
	assert.False(t, isOutage(err))
	assert.True(t, isOutage(&StatusError{Code: 502}))
	assert.True(t, isOutage(context.DeadlineExceeded))
	assert.False(t, isOutage(context.Canceled))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, ConditionClear, Describe(0))
	assert.Equal(t, ConditionCloudy, Describe(3))
	assert.Equal(t, ConditionFog, Describe(45))
	assert.Equal(t, ConditionDrizzle, Describe(53))
	assert.Equal(t, ConditionRain, Describe(81))
	assert.Equal(t, ConditionStorm, Describe(95))
	assert.Equal(t, ConditionUnknown, Describe(42))
	assert.True(t, strings.HasPrefix(string(Describe(73)), "snow"))
}

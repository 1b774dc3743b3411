package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// CurrentFields are the current-condition variables requested per station.
var CurrentFields = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"pressure_msl",
	"wind_speed_10m",
	"wind_direction_10m",
	"precipitation",
	"cloud_cover",
	"weather_code",
}

var (
	ErrMalformedResponse = errors.New("malformed weather response")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrCircuitOpen       = errors.New("circuit breaker open")
)

// breakerOpenTimeout is how long the breaker stays open before probing again.
// It must stay well under the ingest period so one outage skips a few
// stations rather than whole cycles.
const breakerOpenTimeout = 15 * time.Second

// StatusError reports a non-2xx response. It matches ErrUnexpectedStatus.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d: %s", ErrUnexpectedStatus, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Conditions holds the current conditions of one location. Any field may be
// nil when the API has no value for it.
type Conditions struct {
	Temperature   *float64 `json:"temperature_2m"`
	Humidity      *int     `json:"relative_humidity_2m"`
	Pressure      *float64 `json:"pressure_msl"`
	WindSpeed     *float64 `json:"wind_speed_10m"`
	WindDirection *int     `json:"wind_direction_10m"`
	Precipitation *float64 `json:"precipitation"`
	CloudCover    *int     `json:"cloud_cover"`
	WeatherCode   *int     `json:"weather_code"`
}

type forecastResponse struct {
	Current *Conditions `json:"current"`
}

// Client fetches current conditions from the Open-Meteo forecast endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewClient builds a client with a per-request timeout. The breaker only
// fails fast while the API is down; it never retries. Only transport errors
// and 5xx responses count toward tripping it.
func NewClient(baseURL string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !isOutage(err)
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		circuit: cb,
	}
}

// Current returns the current conditions at the given coordinates.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Conditions, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("current", strings.Join(CurrentFields, ","))
	values.Set("wind_speed_unit", "ms")
	u := fmt.Sprintf("%s/v1/forecast?%s", c.baseURL, values.Encode())

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.fetch(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}

	return result.(*Conditions), nil
}

func (c *Client) fetch(ctx context.Context, u string) (*Conditions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if payload.Current == nil {
		return nil, fmt.Errorf("%w: missing current object", ErrMalformedResponse)
	}

	return payload.Current, nil
}

// isOutage reports whether err says the API itself is unavailable. A bad
// answer for one coordinate, or giving up on our side, does not.
func isOutage(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= http.StatusInternalServerError
	}
	return true
}

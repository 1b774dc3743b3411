package notification

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/caribe-weather/internal/anomaly"
	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/logging"
	"github.com/smukkama/caribe-weather/pkg/config"
)

func f(v float64) *float64 { return &v }

func sampleReport() *anomaly.Report {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return anomaly.Analyze([]database.ScanRow{
		{ReadingID: 1, StationID: 1, StationName: "Santa Marta", Temperature: f(20), WindSpeed: f(3), Timestamp: ts},
		{ReadingID: 2, StationID: 1, StationName: "Santa Marta", Temperature: f(26), WindSpeed: f(17), Timestamp: ts.Add(time.Minute)},
	})
}

type captured struct {
	addr string
	to   []string
	msg  string
}

func newTestNotifier(cfg *config.SMTPConfig, sendErr error) (*EmailNotifier, *captured) {
	c := &captured{}
	n := NewEmailNotifier(cfg, logging.Discard())
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		c.addr = addr
		c.to = to
		c.msg = string(msg)
		return sendErr
	}
	return n, c
}

func configured() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		Username: "u", Password: "p",
		From: "from@example.com", To: "ops@example.com",
	}
}

func TestRenderReport(t *testing.T) {
	body, err := renderReport(sampleReport(), time.Time{})
	require.NoError(t, err)

	assert.Contains(t, body, "Scanned: all readings")
	assert.Contains(t, body, "Alerts raised: 2")
	assert.Contains(t, body, "Temperature: mean 23.0 °C, min 20.0 °C, max 26.0 °C")
	assert.Contains(t, body, "Pressure: mean n/a")
	assert.Contains(t, body, "[TEMPERATURE_JUMP] Santa Marta")
	assert.Contains(t, body, "[EXTREME_WIND] Santa Marta")
}

func TestRenderReport_Since(t *testing.T) {
	since := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	body, err := renderReport(sampleReport(), since)
	require.NoError(t, err)
	assert.Contains(t, body, "Scanned: since 2025-03-01T11:00:00Z")
}

func TestSendScanReport(t *testing.T) {
	n, c := newTestNotifier(configured(), nil)

	require.NoError(t, n.SendScanReport(sampleReport(), time.Time{}))
	assert.Equal(t, "smtp.example.com:587", c.addr)
	assert.Equal(t, []string{"ops@example.com"}, c.to)
	assert.True(t, strings.HasPrefix(c.msg, "From: from@example.com\r\n"))
	assert.Contains(t, c.msg, "Subject: Weather anomalies detected: 2 alerts\r\n")
}

func TestSendScanReport_SkipsWithoutAlertsOrConfig(t *testing.T) {
	n, c := newTestNotifier(configured(), nil)
	require.NoError(t, n.SendScanReport(anomaly.Analyze(nil), time.Time{}))
	assert.Empty(t, c.msg)

	unconfigured, c2 := newTestNotifier(&config.SMTPConfig{Host: "smtp.example.com"}, nil)
	assert.False(t, unconfigured.Configured())
	require.NoError(t, unconfigured.SendScanReport(sampleReport(), time.Time{}))
	assert.Empty(t, c2.msg)
}

func TestSendScanReport_SendError(t *testing.T) {
	sendErr := errors.New("535 authentication failed")
	n, _ := newTestNotifier(configured(), sendErr)

	err := n.SendScanReport(sampleReport(), time.Time{})
	assert.ErrorIs(t, err, sendErr)
}

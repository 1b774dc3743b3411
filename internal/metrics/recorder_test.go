package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.RecordStation("Cartagena", OutcomeInserted)
	r.RecordStation("Cartagena", OutcomeInserted)
	r.RecordStation("Riohacha", OutcomeFetch)
	r.RecordCycle(1500 * time.Millisecond)
	r.RecordAlerts("EXTREME_WIND", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stationOutcomes.WithLabelValues("Cartagena", OutcomeInserted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stationOutcomes.WithLabelValues("Riohacha", OutcomeFetch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.alertsTotal.WithLabelValues("EXTREME_WIND")))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.RecordRequest("/health", "200")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `api_requests_total{code="200",route="/health"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

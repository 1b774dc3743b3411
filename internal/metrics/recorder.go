package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Station fetch outcomes
const (
	OutcomeInserted = "inserted"
	OutcomeFetch    = "fetch_failed"
	OutcomeRejected = "rejected"
)

// Recorder owns the Prometheus registry shared by a binary.
type Recorder struct {
	registry *prometheus.Registry

	stationOutcomes *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	cyclesTotal     prometheus.Counter
	alertsTotal     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// NewRecorder creates a recorder with Go and process collectors registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		stationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_station_outcomes_total",
			Help: "Station attempts by station and outcome.",
		}, []string{"station", "outcome"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_cycle_duration_seconds",
			Help:    "Wall time spent fetching and committing one cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Completed ingestion cycles.",
		}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_alerts_total",
			Help: "Alerts raised by the anomaly scanner by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "code"}),
	}

	registry.MustRegister(r.stationOutcomes)
	registry.MustRegister(r.cycleDuration)
	registry.MustRegister(r.cyclesTotal)
	registry.MustRegister(r.alertsTotal)
	registry.MustRegister(r.httpRequests)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RecordStation(station, outcome string) {
	r.stationOutcomes.WithLabelValues(station, outcome).Inc()
}

func (r *Recorder) RecordCycle(d time.Duration) {
	r.cyclesTotal.Inc()
	r.cycleDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordAlerts(kind string, n int) {
	r.alertsTotal.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) RecordRequest(route, code string) {
	r.httpRequests.WithLabelValues(route, code).Inc()
}

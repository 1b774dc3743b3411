package ingest

import (
	"time"

	"github.com/smukkama/caribe-weather/internal/database"
	"github.com/smukkama/caribe-weather/internal/metrics"
	"github.com/smukkama/caribe-weather/pkg/config"
)

// Status is where a station attempt ended up.
type Status int

const (
	StatusFetchFailed Status = iota
	StatusFetched
	StatusRejected
	StatusInserted
)

func (s Status) String() string {
	switch s {
	case StatusFetchFailed:
		return "fetch_failed"
	case StatusFetched:
		return "fetched"
	case StatusRejected:
		return "rejected"
	case StatusInserted:
		return "inserted"
	default:
		return "unknown"
	}
}

func (s Status) metric() string {
	switch s {
	case StatusInserted:
		return metrics.OutcomeInserted
	case StatusRejected:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFetch
	}
}

// StationOutcome is the result of one station attempt within a cycle.
type StationOutcome struct {
	Station config.Station
	Status  Status
	Reading *database.Reading
	Err     error
}

// CycleReport summarizes one polling cycle.
type CycleReport struct {
	Cycle     int
	Attempted int
	Succeeded int
	// Total is the number of readings inserted so far in the run.
	Total     int
	Remaining time.Duration
	Duration  time.Duration
}

// RunSummary summarizes a whole ingestion run.
type RunSummary struct {
	RunID         string
	Cycles        int
	Attempted     int
	Inserted      int
	Elapsed       time.Duration
	RatePerMinute float64
	Reports       []CycleReport
}

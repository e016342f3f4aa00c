package domain

import "time"

// PollVariant names one of the poller configurations.
type PollVariant string

const (
	PollRegular PollVariant = "regular"
	PollManual  PollVariant = "manual"
	PollCatchup PollVariant = "catchup"
)

// Valid reports whether v is a known variant.
func (v PollVariant) Valid() bool {
	switch v {
	case PollRegular, PollManual, PollCatchup:
		return true
	}
	return false
}

// PollRunStatus is the state of a recorded poll run.
type PollRunStatus string

const (
	PollRunRunning PollRunStatus = "running"
	PollRunSuccess PollRunStatus = "success"
	PollRunError   PollRunStatus = "error"
)

// Window is the sold-at interval a poll run covers.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// PollRun is the audit record of one poller invocation.
type PollRun struct {
	ID              string        `json:"id" db:"id"`
	Variant         PollVariant   `json:"variant" db:"variant"`
	Window          Window        `json:"window"`
	Status          PollRunStatus `json:"status" db:"status"`
	EventsFound     int           `json:"events_found" db:"events_found"`
	EventsProcessed int           `json:"events_processed" db:"events_processed"`
	EventsSkipped   int           `json:"events_skipped" db:"events_skipped"`
	DurationMs      int64         `json:"duration_ms" db:"duration_ms"`
	Error           string        `json:"error,omitempty" db:"error"`
	Errors          []string      `json:"errors,omitempty" db:"errors"`
	StartedAt       time.Time     `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty" db:"finished_at"`
}

// Watermark is the boundary below which the primary pollers consider events
// fully processed. It only ever moves forward.
type Watermark struct {
	Name       string    `json:"name" db:"name"`
	LastPollAt time.Time `json:"last_poll_at" db:"last_poll_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// PrimaryWatermark is the watermark shared by the regular and manual polls.
const PrimaryWatermark = "primary"

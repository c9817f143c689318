package annealing

import "time"

// EventKind classifies controller events
type EventKind string

const (
	EventPhase          EventKind = "phase"
	EventStageSubmitted EventKind = "stage_submitted"
	EventStageResolved  EventKind = "stage_resolved"
	EventReport         EventKind = "report"
)

// Event is emitted on every phase transition, stage submission and resolution, and
// for human-readable progress reports.
type Event struct {
	RunID   string
	Kind    EventKind
	At      time.Time
	Phase   Phase
	Stage   *StageRecord
	Message string
}

// Observer receives controller events synchronously, on the controller's goroutine
type Observer func(Event)

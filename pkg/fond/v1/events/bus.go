package events

import "time"

// EventType represents the type of a solver event.
type EventType string

// Standard solver event types.
const (
	SolveStart     EventType = "SolveStart"
	SolveEnd       EventType = "SolveEnd"
	IterationStart EventType = "IterationStart" // An outer policy-bound iteration begins
	IterationEnd   EventType = "IterationEnd"
	BoundEscalated EventType = "BoundEscalated" // The policy bound grew after a failed iteration
	DeadEndCached  EventType = "DeadEndCached"  // A node was proven to be a dead end
)

// Event represents a significant occurrence during a solve run.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// RunID identifies the solve run that emitted the event.
	RunID string `json:"run_id,omitempty"`
	// ProblemName identifies the problem being solved, if known.
	ProblemName string `json:"problem_name,omitempty"`
	// Payload contains event-specific data (bounds, counters, results).
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus defines the interface for publishing solver events.
type Bus interface {
	// Emit publishes an event. Implementations must not block the search.
	Emit(event Event)
}

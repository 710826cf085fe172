package events

import "time"

// LifecycleEvent is implemented by all build pipeline lifecycle events.
// Subscribing to this interface on the Bus receives every lifecycle event;
// Kind identifies the concrete event for serialization and subject routing.
type LifecycleEvent interface {
	Kind() string
}

// RestoreStarted is emitted immediately before the restore phase spawns the
// external tool.
type RestoreStarted struct {
	CorrelationID string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
}

func (RestoreStarted) Kind() string { return "restore_started" }

// RestoreCompleted is emitted once the restore phase process has resolved.
// ExitCode is nil when the process was killed rather than exiting on its own.
type RestoreCompleted struct {
	CorrelationID string        `json:"correlation_id"`
	Result        string        `json:"result"`
	ExitCode      *int          `json:"exit_code,omitempty"`
	Duration      time.Duration `json:"duration"`
	CompletedAt   time.Time     `json:"completed_at"`
}

func (RestoreCompleted) Kind() string { return "restore_completed" }

// BuildStarted is emitted immediately before the build phase spawns the
// external tool.
type BuildStarted struct {
	CorrelationID string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
}

func (BuildStarted) Kind() string { return "build_started" }

// BuildCompleted is emitted once the build phase process has resolved.
type BuildCompleted struct {
	CorrelationID string        `json:"correlation_id"`
	Result        string        `json:"result"`
	ExitCode      *int          `json:"exit_code,omitempty"`
	Duration      time.Duration `json:"duration"`
	CompletedAt   time.Time     `json:"completed_at"`
}

func (BuildCompleted) Kind() string { return "build_completed" }

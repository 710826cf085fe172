package metrics

import "time"

// Recorder defines observability hooks for pipeline phases and run outcomes.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on nil receivers so injection stays optional.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	IncPhaseResult(phase string, result string)
	IncRunOutcome(outcome string) // outcome: succeeded|failed|canceled
	IncRestoreSkipped()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) IncPhaseResult(string, string)              {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) IncRestoreSkipped()                         {}

package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	phaseDuration  *prom.HistogramVec
	phaseResults   *prom.CounterVec
	runOutcomes    *prom.CounterVec
	restoreSkipped prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docpipe",
			Name:      "phase_duration_seconds",
			Help:      "Duration of restore/build phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "phase_results_total",
			Help:      "Phase result counts by outcome",
		}, []string{"phase", "result"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.restoreSkipped = prom.NewCounter(prom.CounterOpts{
			Namespace: "docpipe",
			Name:      "restore_skipped_total",
			Help:      "Runs that reused the one-time restore result",
		})
		reg.MustRegister(pr.phaseDuration, pr.phaseResults, pr.runOutcomes, pr.restoreSkipped)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result string) {
	if p == nil || p.phaseResults == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, result).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncRestoreSkipped() {
	if p == nil || p.restoreSkipped == nil {
		return
	}
	p.restoreSkipped.Inc()
}

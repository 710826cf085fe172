package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder_NilSafe(t *testing.T) {
	var r NoopRecorder
	r.ObservePhaseDuration("build", time.Second)
	r.IncPhaseResult("build", "succeeded")
	r.IncRunOutcome("succeeded")
	r.IncRestoreSkipped()
}

func TestPrometheusRecorder_RegistersAndCounts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.ObservePhaseDuration("restore", 2*time.Second)
	r.IncPhaseResult("restore", "succeeded")
	r.IncRunOutcome("succeeded")
	r.IncRestoreSkipped()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	require.True(t, names["docpipe_phase_duration_seconds"])
	require.True(t, names["docpipe_phase_results_total"])
	require.True(t, names["docpipe_run_outcomes_total"])
	require.True(t, names["docpipe_restore_skipped_total"])
}

func TestPrometheusRecorder_NilReceiverSafe(t *testing.T) {
	var r *PrometheusRecorder
	r.ObservePhaseDuration("build", time.Second)
	r.IncPhaseResult("build", "failed")
	r.IncRunOutcome("failed")
	r.IncRestoreSkipped()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "crazifier_session_state",
		Help: "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crazifier_session_transitions_total",
		Help: "Session state transitions by origin and target state",
	}, []string{"from", "to"})

	renderJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crazifier_render_jobs_total",
		Help: "Render jobs by kind and outcome (ok|failed|stopped|auto_stopped|superseded)",
	}, []string{"kind", "outcome"})

	probeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crazifier_probe_results_total",
		Help: "Duration probe classifications",
	}, []string{"result"})

	bestEffortStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crazifier_best_effort_stops_total",
		Help: "Detached stop requests by trigger and result",
	}, []string{"trigger", "result"})

	autoStopTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crazifier_autostop_timers_armed",
		Help: "Number of armed auto-stop timers (never exceeds 1)",
	})
)

// SessionStates lists every state label exported by the session gauge.
var SessionStates = []string{"idle", "probing", "probe_error", "ready", "rendering", "stopping"}

// SetSessionState records the active session state.
func SetSessionState(state string) {
	for _, s := range SessionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		sessionState.WithLabelValues(s).Set(value)
	}
}

// RecordSessionTransition counts a state change.
func RecordSessionTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordRenderJob counts a finished render job.
func RecordRenderJob(kind, outcome string) {
	renderJobs.WithLabelValues(kind, outcome).Inc()
}

// RecordProbeResult counts a probe classification.
func RecordProbeResult(result string) {
	probeResults.WithLabelValues(result).Inc()
}

// RecordBestEffortStop counts a detached stop request.
func RecordBestEffortStop(trigger, result string) {
	bestEffortStops.WithLabelValues(trigger, result).Inc()
}

// SetAutoStopArmed exports whether the auto-stop timer is armed.
func SetAutoStopArmed(armed bool) {
	if armed {
		autoStopTimers.Set(1)
		return
	}
	autoStopTimers.Set(0)
}

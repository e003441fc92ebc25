// Package metrics holds the Prometheus collectors for runs, slots and remote sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmdesk_runs_total",
			Help: "Total number of runs by workflow and final status",
		},
		[]string{"workflow", "status"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmdesk_run_duration_seconds",
			Help:    "Run execution duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
		[]string{"workflow"},
	)

	runsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmdesk_runs_active",
			Help: "Number of currently executing runs",
		},
	)

	// Slot metrics
	slotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmdesk_slots_total",
			Help: "Total number of finished VM slots by role and status",
		},
		[]string{"role", "status"},
	)

	promptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vmdesk_prompt_duration_seconds",
			Help:    "Time the remote agent spent on one instruction",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"role"},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmdesk_sessions_active",
			Help: "Number of open remote computer sessions",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vmdesk_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Queue metrics
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmdesk_queue_depth",
			Help: "Number of runs waiting in queue",
		},
	)

	deadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vmdesk_dead_letters_total",
			Help: "Runs moved to the dead letter queue",
		},
	)
)

// RecordRunStarted marks a run as executing.
func RecordRunStarted() {
	runsActive.Inc()
}

// RecordRunFinished records the final status of a run.
func RecordRunFinished(workflow, status string, duration time.Duration) {
	runsActive.Dec()
	runsTotal.WithLabelValues(workflow, status).Inc()
	runDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordSlot records one finished slot and how long its prompt ran.
func RecordSlot(role, status string, duration time.Duration) {
	slotsTotal.WithLabelValues(role, status).Inc()
	if duration > 0 {
		promptDuration.WithLabelValues(role).Observe(duration.Seconds())
	}
}

func SessionOpened() {
	sessionsActive.Inc()
}

func SessionClosed() {
	sessionsActive.Dec()
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// SetQueueDepth sets the current queue depth
func SetQueueDepth(depth int64) {
	queueDepth.Set(float64(depth))
}

func RecordDeadLetter() {
	deadLetters.Inc()
}

// Package metrics exposes Prometheus collectors for runs and tasks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sellerwatch"

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runActive     prometheus.Gauge
	tasks         *prometheus.CounterVec
	taskErrors    *prometheus.CounterVec
	tasksInFlight prometheus.Gauge
	items         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Engine invocations by result (completed, skipped, failed).",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		runActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a run holds the guard.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Task runner invocations by outcome.",
		}, []string{"outcome"}),
		taskErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_errors_total",
			Help:      "Failed tasks by error code.",
		}, []string{"code"}),
		tasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Task runners currently executing.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Catalog items by stage (listed, kept, recorded, skipped).",
		}, []string{"stage"}),
	}
	reg.MustRegister(m.runs, m.runDuration, m.runActive, m.tasks, m.taskErrors, m.tasksInFlight, m.items)
	return m
}

// RunStarted marks the guard as held.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runActive.Set(1)
}

// RunFinished records a run that held the guard.
func (m *Metrics) RunFinished(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.runActive.Set(0)
	result := "completed"
	if failed {
		result = "failed"
	}
	m.runs.WithLabelValues(result).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RunSkipped records an invocation rejected by the guard.
func (m *Metrics) RunSkipped() {
	if m == nil {
		return
	}
	m.runs.WithLabelValues("skipped").Inc()
}

// TaskStarted increments the in-flight gauge.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksInFlight.Inc()
}

// TaskFinished records a task outcome; code is empty on success.
func (m *Metrics) TaskFinished(code string, listed, kept, recorded, skipped int) {
	if m == nil {
		return
	}
	m.tasksInFlight.Dec()
	if code == "" {
		m.tasks.WithLabelValues("succeeded").Inc()
	} else {
		m.tasks.WithLabelValues("failed").Inc()
		m.taskErrors.WithLabelValues(code).Inc()
	}
	m.items.WithLabelValues("listed").Add(float64(listed))
	m.items.WithLabelValues("kept").Add(float64(kept))
	m.items.WithLabelValues("recorded").Add(float64(recorded))
	m.items.WithLabelValues("skipped").Add(float64(skipped))
}

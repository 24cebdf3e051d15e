// Package metrics exposes workflow and dispatch counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	dispatches  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_dispatch_total",
				Help: "Recipients processed by workflow, channel and outcome.",
			},
			[]string{"workflow", "channel", "outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cadence_workflow_runs_total",
				Help: "Workflow runs by status.",
			},
			[]string{"workflow", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cadence_workflow_run_duration_seconds",
				Help:    "Wall time of workflow runs.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"workflow"},
		),
		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cadence_workflow_last_run_timestamp_seconds",
				Help: "Unix time the workflow last finished.",
			},
			[]string{"workflow"},
		),
	}
	m.registry.MustRegister(
		m.dispatches, m.runs, m.runDuration, m.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveDispatch(workflow notification.WorkflowID, channel notification.Channel, outcome notification.Outcome) {
	ch := string(channel)
	if ch == "" {
		ch = "none"
	}
	m.dispatches.WithLabelValues(string(workflow), ch, string(outcome)).Inc()
}

func (m *Metrics) ObserveRun(run *notification.WorkflowRun, took time.Duration) {
	status := "completed"
	if run.Error != "" {
		status = "aborted"
	}
	id := string(run.WorkflowID)
	m.runs.WithLabelValues(id, status).Inc()
	m.runDuration.WithLabelValues(id).Observe(took.Seconds())
	m.lastRun.WithLabelValues(id).Set(float64(run.FinishedAt.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

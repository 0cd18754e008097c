// Package prom exports scheduler activity as Prometheus metrics.
//
// Metrics implements schedulers.Observer and prometheus.Collector:
//
//	m := prom.New("app")
//	prometheus.MustRegister(m)
//	f := coordination.NewFactory(schedulers.WithObserver(m))
package prom

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NetPo4ki/go-rx/schedulers"
)

const kindLabel = "kind"

// Metrics counts workers and actions per scheduler kind.
type Metrics struct {
	registry *prometheus.Registry

	workers   *prometheus.GaugeVec
	started   *prometheus.CounterVec
	finished  *prometheus.CounterVec
	panicked  *prometheus.CounterVec
	cancelled *prometheus.CounterVec
	lateness  *prometheus.HistogramVec
	duration  *prometheus.HistogramVec

	// totals across kinds
	activeWorkers   atomic.Int64
	actionsStarted  atomic.Int64
	actionsFinished atomic.Int64
	actionsPanicked atomic.Int64
	actionsDropped  atomic.Int64
	actionDurSumNs  atomic.Int64
}

// New returns Metrics whose series are prefixed with namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "workers",
			Help:      "Workers currently alive.",
		}, []string{kindLabel}),
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "actions_started_total",
			Help:      "Scheduled actions that began running.",
		}, []string{kindLabel}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "actions_finished_total",
			Help:      "Scheduled actions that returned or panicked.",
		}, []string{kindLabel}),
		panicked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "actions_panicked_total",
			Help:      "Scheduled actions that panicked.",
		}, []string{kindLabel}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "actions_cancelled_total",
			Help:      "Scheduled actions discarded because they were disposed.",
		}, []string{kindLabel}),
		lateness: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "action_lateness_seconds",
			Help:      "Delay between an action's due time and its start.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{kindLabel}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "action_duration_seconds",
			Help:      "Time spent running an action.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{kindLabel}),
	}
	m.registry.MustRegister(m.workers, m.started, m.finished, m.panicked, m.cancelled, m.lateness, m.duration)
	return m
}

// Describe is part of the implementation of prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) { m.registry.Describe(ch) }

// Collect is part of the implementation of prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) { m.registry.Collect(ch) }

// WorkerCreated increments the live worker gauge.
func (m *Metrics) WorkerCreated(_ context.Context, kind schedulers.Kind) {
	m.activeWorkers.Add(1)
	m.workers.WithLabelValues(string(kind)).Inc()
}

// WorkerReleased decrements the live worker gauge.
func (m *Metrics) WorkerReleased(_ context.Context, kind schedulers.Kind) {
	m.activeWorkers.Add(-1)
	m.workers.WithLabelValues(string(kind)).Dec()
}

// ActionStarted counts the action and records its lateness.
func (m *Metrics) ActionStarted(_ context.Context, kind schedulers.Kind, lateness time.Duration) {
	m.actionsStarted.Add(1)
	m.started.WithLabelValues(string(kind)).Inc()
	m.lateness.WithLabelValues(string(kind)).Observe(max(lateness, 0).Seconds())
}

// ActionFinished records duration and counts panics.
func (m *Metrics) ActionFinished(_ context.Context, kind schedulers.Kind, dur time.Duration, err error) {
	m.actionsFinished.Add(1)
	m.actionDurSumNs.Add(dur.Nanoseconds())
	m.finished.WithLabelValues(string(kind)).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(dur.Seconds())
	var pe *schedulers.PanicError
	if errors.As(err, &pe) {
		m.actionsPanicked.Add(1)
		m.panicked.WithLabelValues(string(kind)).Inc()
	}
}

// ActionCancelled counts an action dropped before it ran.
func (m *Metrics) ActionCancelled(_ context.Context, kind schedulers.Kind) {
	m.actionsDropped.Add(1)
	m.cancelled.WithLabelValues(string(kind)).Inc()
}

// Snapshot is a copy of the totals across all scheduler kinds.
type Snapshot struct {
	ActiveWorkers    int64
	ActionsStarted   int64
	ActionsFinished  int64
	ActionsPanicked  int64
	ActionsCancelled int64
	ActionDurSumNs   int64
}

// GetSnapshot returns the current totals.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		ActiveWorkers:    m.activeWorkers.Load(),
		ActionsStarted:   m.actionsStarted.Load(),
		ActionsFinished:  m.actionsFinished.Load(),
		ActionsPanicked:  m.actionsPanicked.Load(),
		ActionsCancelled: m.actionsDropped.Load(),
		ActionDurSumNs:   m.actionDurSumNs.Load(),
	}
}

var _ schedulers.Observer = (*Metrics)(nil)
var _ prometheus.Collector = (*Metrics)(nil)

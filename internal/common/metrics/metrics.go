// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handler outcomes recorded by the event bus.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

var (
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_events_emitted_total",
			Help: "Total number of events emitted by kind",
		},
		[]string{"kind"},
	)

	HandlerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_handler_invocations_total",
			Help: "Total number of handler invocations by kind, handler and outcome",
		},
		[]string{"kind", "handler", "outcome"},
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventbus_handler_duration_seconds",
			Help:    "Duration of a single handler invocation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "handler"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Delivery attempts by channel, kind and status",
		},
		[]string{"channel", "kind", "status"},
	)

	ReminderScanMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_scan_schedules_total",
			Help: "Schedules seen by the reminder scan by result",
		},
		[]string{"result"},
	)

	ReminderScanRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_scan_runs_total",
			Help: "Reminder scan runs by status",
		},
		[]string{"status"},
	)
)

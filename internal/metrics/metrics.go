// Package metrics exposes Prometheus instrumentation for the notification
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline metrics, registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Rule engine
	RuleEvaluations    *prometheus.CounterVec
	RuleFirings        *prometheus.CounterVec
	RuleSuppressions   *prometheus.CounterVec
	RuleErrors         *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	// Notification store
	NotificationsAdded *prometheus.CounterVec
	UnreadCount        prometheus.Gauge
	QueuedCount        prometheus.Gauge
	PersistErrors      *prometheus.CounterVec

	// Toast layer
	ToastRequests *prometheus.CounterVec
	ToastsVisible prometheus.Gauge
	ToastsWaiting prometheus.Gauge

	// Sync
	SyncAttempts *prometheus.CounterVec
}

// New creates and registers all metrics under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RuleEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rule_evaluations_total",
			Help:      "Rules evaluated, by rule id",
		}, []string{"rule_id"}),
		RuleFirings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rule_firings_total",
			Help:      "Rules whose conditions held and which emitted notifications",
		}, []string{"rule_id"}),
		RuleSuppressions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rule_suppressions_total",
			Help:      "Matching rules that did not fire, by reason",
		}, []string{"rule_id", "reason"}),
		RuleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rule_errors_total",
			Help:      "Rules that failed to evaluate",
		}, []string{"rule_id"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing the full rule set",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),

		NotificationsAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "notifications_added_total",
			Help:      "Notification add requests by category and outcome",
		}, []string{"category", "outcome"}),
		UnreadCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "unread_notifications",
			Help:      "Current number of unread notifications",
		}),
		QueuedCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "queued_notifications",
			Help:      "Notifications held back by quiet hours or offline mode",
		}),
		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_errors_total",
			Help:      "Failed writes to the persistence backend",
		}, []string{"what"}),

		ToastRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "toast",
			Name:      "requests_total",
			Help:      "Toast requests by decision",
		}, []string{"decision"}),
		ToastsVisible: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "toast",
			Name:      "visible",
			Help:      "Toasts currently on screen",
		}),
		ToastsWaiting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "toast",
			Name:      "waiting",
			Help:      "Toasts waiting for a display slot",
		}),

		SyncAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "attempts_total",
			Help:      "Sync attempts by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

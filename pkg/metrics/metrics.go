// Package metrics exposes the relayer's Prometheus instrumentation on a
// private registry, so a binary that doesn't run the HTTP server (e.g. the
// migration CLI) never pulls in a default /metrics surface by accident.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the scheduler and chain gateways record
// against.
type Metrics struct {
	registry *prometheus.Registry

	TickDuration     prometheus.Histogram
	DueSubscriptions prometheus.Gauge
	Executions       *prometheus.CounterVec
	Failures         prometheus.Counter
	RPCErrors        *prometheus.CounterVec
}

// New builds a Metrics bound to a fresh, private registry and registers
// every instrument against it.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scheduler tick, from due-set query through the last execution attempt.",
			Buckets:   prometheus.DefBuckets,
		}),
		DueSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scheduler",
			Name:      "due_subscriptions",
			Help:      "Number of subscriptions returned by the most recent due-set query.",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "executions_total",
			Help:      "Subscription execution attempts, labeled by outcome.",
		}, []string{"outcome"}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "failures_total",
			Help:      "Subscription execution attempts that recorded a failure against the subscription row.",
		}),
		RPCErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "rpc_errors_total",
			Help:      "RPC call errors, labeled by chain and operation.",
		}, []string{"chain", "op"}),
	}

	registry.MustRegister(m.TickDuration, m.DueSubscriptions, m.Executions, m.Failures, m.RPCErrors)
	return m
}

// Handler serves the registry's metrics in the Prometheus text exposition
// format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

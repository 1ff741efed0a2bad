package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetward"

// Metrics holds the process collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	authzDenials          *prometheus.CounterVec
	delegationTransitions *prometheus.CounterVec
	reconcileRuns         *prometheus.CounterVec
	reconcileUpdated      prometheus.Counter
	reconcileFailures     prometheus.Counter
	reconcileDuration     prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_denials_total",
			Help:      "Authorization denials by internal reason.",
		}, []string{"reason"}),
		delegationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegation_transitions_total",
			Help:      "Delegation entry status changes by target status.",
		}, []string{"status"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation runs by result.",
		}, []string{"result"}),
		reconcileUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_records_updated_total",
			Help:      "Records whose stored status was corrected.",
		}),
		reconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_record_failures_total",
			Help:      "Records that could not be corrected during a run.",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Wall time of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authzDenials,
		m.delegationTransitions,
		m.reconcileRuns,
		m.reconcileUpdated,
		m.reconcileFailures,
		m.reconcileDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AuthzDenied(reason string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(reason).Inc()
}

func (m *Metrics) DelegationTransitioned(status string) {
	if m == nil {
		return
	}
	m.delegationTransitions.WithLabelValues(status).Inc()
}

// ReconcileFinished records one run. result is "ok", "skipped" or "error".
func (m *Metrics) ReconcileFinished(result string, updated, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	m.reconcileUpdated.Add(float64(updated))
	m.reconcileFailures.Add(float64(failed))
	if result != "skipped" {
		m.reconcileDuration.Observe(seconds)
	}
}

package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the generation lifecycle collectors. A nil *Metrics is valid
// and records nothing, which keeps tests and the CLI free of registry setup.
type Metrics struct {
	dispatchTotal   *prometheus.CounterVec
	reconcileTotal  *prometheus.CounterVec
	importDuration  *prometheus.HistogramVec
	providerLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "genstudio",
				Name:      "dispatch_total",
				Help:      "Generation dispatch attempts by provider family and outcome",
			},
			[]string{"api_type", "outcome"},
		),
		reconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "genstudio",
				Name:      "reconcile_total",
				Help:      "Reconcile passes by provider family and resulting status",
			},
			[]string{"api_type", "status"},
		),
		importDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "genstudio",
				Name:      "artifact_import_seconds",
				Help:      "Time spent importing a produced artifact into file hosting",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "genstudio",
				Name:      "provider_request_seconds",
				Help:      "Latency of upstream provider calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"api_type", "stage"},
		),
	}
	reg.MustRegister(m.dispatchTotal, m.reconcileTotal, m.importDuration, m.providerLatency)
	return m
}

func (m *Metrics) ObserveDispatch(apiType, outcome string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(apiType, outcome).Inc()
}

func (m *Metrics) ObserveReconcile(apiType, status string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(apiType, status).Inc()
}

func (m *Metrics) ObserveImport(kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.importDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveProvider(apiType, stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(apiType, stage).Observe(took.Seconds())
}

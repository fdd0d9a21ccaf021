package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the billing collectors. They live on their own registry so
// tests can build several; runtime and gorm metrics stay on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	SweepChurches   *prometheus.CounterVec
	SweepErrors     *prometheus.CounterVec
	GatewayRequests *prometheus.HistogramVec
	Notifications   *prometheus.CounterVec
	ProRataCredit   prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		SweepChurches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecclesia",
			Subsystem: "sweep",
			Name:      "items_total",
			Help:      "Items handled by billing sweeps, by sweep and outcome.",
		}, []string{"sweep", "outcome"}),
		SweepErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecclesia",
			Subsystem: "sweep",
			Name:      "errors_total",
			Help:      "Per-item failures recorded by billing sweeps.",
		}, []string{"sweep"}),
		GatewayRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecclesia",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecclesia",
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by type and outcome.",
		}, []string{"type", "outcome"}),
		ProRataCredit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecclesia",
			Subsystem: "prorata",
			Name:      "credit_reais_total",
			Help:      "Pro-rata credit granted on downgrades, in reais.",
		}),
	}

	reg.MustRegister(
		m.SweepChurches,
		m.SweepErrors,
		m.GatewayRequests,
		m.Notifications,
		m.ProRataCredit,
	)
	return m
}

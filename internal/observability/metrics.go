// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	PoolsCreated        prometheus.Counter
	PoolCreateRejected  *prometheus.CounterVec
	Admissions          prometheus.Counter
	AdmissionsRejected  *prometheus.CounterVec
	Withdrawals         prometheus.Counter
	WithdrawalsRejected *prometheus.CounterVec
	DistributedTotal    prometheus.Counter
	TransferFailures    prometheus.Counter

	// Pool state metrics
	ActivePools prometheus.Gauge
	CustodyHeld prometheus.Gauge

	// Feed metrics
	FeedSubscribers prometheus.Gauge
	EventsPublished *prometheus.CounterVec
	SinkErrors      *prometheus.CounterVec

	// Latency metrics
	OperationLatency *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pool_escrow"
	}

	return &Metrics{
		// Ledger metrics
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "pools_created_total",
			Help:      "Total number of pools created",
		}),
		PoolCreateRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "pool_create_rejected_total",
			Help:      "Total number of rejected pool creations by reason",
		}, []string{"reason"}),
		Admissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "admissions_total",
			Help:      "Total number of successful pool admissions",
		}),
		AdmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "admissions_rejected_total",
			Help:      "Total number of rejected admissions by reason",
		}, []string{"reason"}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "withdrawals_total",
			Help:      "Total number of successful fund withdrawals",
		}),
		WithdrawalsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "withdrawals_rejected_total",
			Help:      "Total number of rejected withdrawals by reason",
		}, []string{"reason"}),
		DistributedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "distributed_amount_total",
			Help:      "Total token amount distributed to recipients",
		}),
		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transfer_failures_total",
			Help:      "Total number of failed token transfers",
		}),

		// Pool state metrics
		ActivePools: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "active_pools",
			Help:      "Current number of registered pools",
		}),
		CustodyHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "custody_held_amount",
			Help:      "Token amount currently held across all pool balances",
		}),

		// Feed metrics
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of WebSocket feed subscribers",
		}),
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_published_total",
			Help:      "Total number of events published by type",
		}, []string{"type"}),
		SinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "sink_errors_total",
			Help:      "Total number of event sink publish errors by sink",
		}, []string{"sink"}),

		// Latency metrics
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_latency_seconds",
			Help:      "Ledger operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

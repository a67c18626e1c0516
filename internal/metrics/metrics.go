package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Proxy admission state
	ProxyInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_in_flight_requests",
		Help: "Requests currently admitted and talking to store B.",
	})

	ProxyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_queued_requests",
		Help: "Requests waiting for an admission slot.",
	})

	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Proxied requests by final state (completed, timed_out, failed, rejected).",
		},
		[]string{"state"},
	)

	ProxyQueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "proxy_queue_wait_seconds",
		Help:    "Time spent queued before admission.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 15},
	})

	// Reconciler outcomes per store
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_store_operations_total",
			Help: "Store operations issued by the reconciler by store, operation and outcome.",
		},
		[]string{"store", "op", "outcome"},
	)

	ReadFailoversTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_read_failovers_total",
		Help: "Reads served by store B after store A failed.",
	})

	OutboxRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_retries_total",
			Help: "Outbox retry attempts by store and outcome.",
		},
		[]string{"store", "outcome"},
	)

	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_feed_clients",
		Help: "Connected live feed websocket clients.",
	})
)

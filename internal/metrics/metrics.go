package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisper_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whisper_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whisper_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whisper_messages_created_total",
			Help: "Total messages created",
		},
	)

	SearchQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisper_search_queries_total",
			Help: "Total search queries",
		},
		[]string{"path"}, // "vector" or "hybrid"
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whisper_search_results",
			Help:    "Result count per search",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		},
	)

	IndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whisper_index_failures_total",
			Help: "Total message indexing failures",
		},
	)

	// Delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisper_deliveries_total",
			Help: "Total realtime deliveries",
		},
		[]string{"kind"}, // "receiver" or "ack"
	)

	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whisper_connections",
			Help: "Currently registered websocket connections",
		},
	)

	// Infrastructure metrics
	EncoderLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whisper_encoder_latency_seconds",
			Help:    "Text encoder call latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whisper_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)

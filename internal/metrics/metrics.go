package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teamroom_users_registered_total",
			Help: "Total users registered",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamroom_messages_posted_total",
			Help: "Total messages persisted",
		},
		[]string{"sender_kind"}, // "human" or "synthetic"
	)

	// Reply pipeline metrics
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamroom_generation_duration_seconds",
			Help:    "Reply generation latency per persona",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"persona"},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamroom_generation_failures_total",
			Help: "Reply branches that ended without a delivered message",
		},
		[]string{"persona", "reason"}, // "generate", "persist", "unknown_persona"
	)

	RepliesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamroom_replies_delivered_total",
			Help: "Synthetic replies broadcast to rooms",
		},
		[]string{"persona"},
	)

	ReplyDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "teamroom_reply_delay_seconds",
			Help:    "Scheduled delay before a reply is broadcast",
			Buckets: []float64{.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 5},
		},
	)

	BranchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teamroom_reply_branches_in_flight",
			Help: "Reply branches not yet delivered or failed",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamroom_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamroom_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamroom_store_latency_seconds",
			Help:    "Store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"backend", "op"},
	)

	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "teamroom_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)
)

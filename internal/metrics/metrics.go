package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oliv_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oliv_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ChatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oliv_chat_turns_total",
			Help: "Conversation turns handled, by dispatched intent.",
		},
		[]string{"intent"},
	)

	ClarificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oliv_clarifications_total",
			Help: "Clarifying questions asked, by missing field.",
		},
		[]string{"field"},
	)

	CollaboratorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oliv_collaborator_calls_total",
			Help: "Calls to external collaborators, by collaborator and outcome.",
		},
		[]string{"collaborator", "outcome"},
	)

	ChatTurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oliv_chat_turn_duration_seconds",
			Help:    "End-to-end conversation turn latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ChatTurnsTotal,
		ClarificationsTotal,
		CollaboratorCallsTotal,
		ChatTurnDuration,
	)
}

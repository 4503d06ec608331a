package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPC metrics
	RPCInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vyna_rpc_invocations_total",
			Help: "Total remote command invocations",
		},
		[]string{"method", "result"}, // result: "ok" or "error"
	)

	RPCRegistrationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vyna_rpc_registration_failures_total",
			Help: "Remote command registrations rejected by the session",
		},
		[]string{"method"},
	)

	// Session metrics
	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vyna_session_events_total",
			Help: "Events processed by the session loop",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vyna_session_events_dropped_total",
			Help: "Events dropped because the session loop was gone",
		},
	)

	AgentTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vyna_agent_timeouts_total",
			Help: "Sessions ended because the agent never became available",
		},
	)

	// HTTP client metrics
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vyna_backend_request_duration_seconds",
			Help:    "Latency of connection-details and chat backend requests",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)
)

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of backend requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	GatewayRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_retries_total",
			Help: "Total number of backend request retries",
		},
		[]string{"endpoint"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "gateway_request_duration_seconds",
			Help: "Duration of backend requests in seconds, including retries",
		},
		[]string{"endpoint"},
	)

	DashboardRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_refresh_total",
			Help: "Total number of dashboard refreshes by outcome",
		},
		[]string{"outcome"},
	)

	DashboardStaleResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashboard_stale_responses_total",
			Help: "Responses discarded because a newer refresh had already been applied",
		},
	)

	DashboardClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_clients",
			Help: "Number of clients in the latest dashboard snapshot",
		},
	)

	WizardTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_transitions_total",
			Help: "Intake wizard step transitions by origin step and outcome",
		},
		[]string{"from", "outcome"},
	)

	NotificationClears = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_clears_total",
			Help: "Explicit notification clears by viewer role",
		},
		[]string{"role"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeStale   = "stale"
	OutcomeInvalid = "invalid"
)

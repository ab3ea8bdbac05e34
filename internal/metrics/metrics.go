package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Verification metrics
	VerificationCodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songcontest_verification_codes_issued_total",
			Help: "Verification codes created or reset, by type",
		},
		[]string{"type"},
	)

	VerificationMailFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songcontest_verification_mail_failures_total",
			Help: "Verification emails that could not be delivered, by type",
		},
		[]string{"type"},
	)

	VerificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songcontest_verification_attempts_total",
			Help: "Verification attempts by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: success/invalid/expired/exhausted/error
	)

	VerificationRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songcontest_verification_rate_limited_total",
			Help: "Resend requests denied by the issuance rate limit, by type",
		},
		[]string{"type"},
	)

	VerificationCodesCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "songcontest_verification_codes_cleaned_total",
			Help: "Expired verification codes removed by the cleanup sweep",
		},
	)

	// Contest phase metrics
	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songcontest_phase_transitions_total",
			Help: "Automatic contest phase advancements",
		},
		[]string{"from", "to"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "songcontest_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "songcontest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

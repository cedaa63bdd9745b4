// Package metrics registers the Prometheus instruments exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenledger_submissions_total",
			Help: "Total number of waste submissions by outcome",
		},
		[]string{"outcome"},
	)

	PointsCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greenledger_points_credited_total",
			Help: "Total points credited through approved submissions",
		},
	)

	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenledger_redemptions_total",
			Help: "Total number of redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	PointsSpentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greenledger_points_spent_total",
			Help: "Total points spent through completed redemptions",
		},
	)

	ExpiredReservationsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greenledger_expired_reservations_swept_total",
			Help: "Total stock reservations cancelled by the expiry sweep",
		},
	)

	ConcurrencyConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenledger_concurrency_conflicts_total",
			Help: "Total optimistic-concurrency conflicts by subject",
		},
		[]string{"subject"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordSubmission(outcome string) {
	SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func RecordPointsCredited(points int64) {
	PointsCreditedTotal.Add(float64(points))
}

func RecordRedemption(outcome string) {
	RedemptionsTotal.WithLabelValues(outcome).Inc()
}

func RecordPointsSpent(points int64) {
	PointsSpentTotal.Add(float64(points))
}

func RecordSweptReservations(count int) {
	ExpiredReservationsSweptTotal.Add(float64(count))
}

func RecordConcurrencyConflict(subject string) {
	ConcurrencyConflictsTotal.WithLabelValues(subject).Inc()
}

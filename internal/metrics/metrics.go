package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK              = "ok"
	OutcomeInvalid         = "invalid"
	OutcomeInvalidProvider = "invalid_provider"
	OutcomePastDate        = "past_date"
	OutcomeConflict        = "conflict"
	OutcomeNotFound        = "not_found"
	OutcomeForbidden       = "forbidden"
	OutcomeTooLate         = "too_late"
	OutcomeError           = "error"
)

var (
	BookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	CancellationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_cancellations_total",
			Help: "Cancellation attempts by outcome",
		},
		[]string{"outcome"},
	)

	NotificationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_notification_failures_total",
			Help: "Provider notifications that could not be recorded",
		},
	)

	DispatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_dispatch_failures_total",
			Help: "Cancellation mail jobs that could not be queued",
		},
	)

	MailJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_jobs_processed_total",
			Help: "Cancellation mail jobs handled by the worker",
		},
		[]string{"status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		BookingsTotal,
		CancellationsTotal,
		NotificationFailures,
		DispatchFailures,
		MailJobsTotal,
		HTTPRequestDuration,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

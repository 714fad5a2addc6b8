package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
		eventsByKind,
		eventStoreFailures,
	)
}

var (
	// result: ok|missing_signature|invalid_signature|malformed|error
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Payment webhook calls by result.",
		},
		[]string{"result"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Time from receipt to acknowledgement of a payment webhook.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 45},
		},
		[]string{"result"},
	)

	eventsByKind = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Verified payment events by classified kind.",
		},
		[]string{"kind"},
	)

	eventStoreFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_event_store_failures_total",
			Help: "Inbound events that could not be appended to the event log.",
		},
	)
)

func IncEventKind(kind string) { eventsByKind.WithLabelValues(norm(kind)).Inc() }

func IncEventStoreFailure() { eventStoreFailures.Inc() }

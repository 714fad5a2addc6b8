package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(deliveryOutcomes, deliveryDuration, deliveryMessages)
}

var (
	deliveryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_delivery_outcomes_total",
			Help: "Delivery attempts by content source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_delivery_duration_seconds",
			Help:    "Duration of one delivery attempt including all sends.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"outcome"},
	)

	// kind: text|photo; status: sent|error
	deliveryMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_delivery_messages_total",
			Help: "Chat messages pushed by the dispatcher.",
		},
		[]string{"kind", "status"},
	)
)

func ObserveDelivery(source, outcome string, took time.Duration) {
	deliveryOutcomes.WithLabelValues(norm(source), norm(outcome)).Inc()
	deliveryDuration.WithLabelValues(norm(outcome)).Observe(took.Seconds())
}

func IncDeliveryMessage(kind, status string) {
	deliveryMessages.WithLabelValues(norm(kind), norm(status)).Inc()
}

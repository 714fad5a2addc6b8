package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(packGenerations, packImages, packGenerationDuration) }

var (
	packGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_pack_generations_total",
			Help: "Pack generation runs by writer and status.",
		},
		[]string{"writer", "status"}, // status: ready|empty|failed
	)

	packImages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_pack_images_total",
			Help: "Rendered pack images by status.",
		},
		[]string{"status"}, // ok|skipped
	)

	packGenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_pack_generation_duration_seconds",
			Help:    "Wall time of one pack generation run.",
			Buckets: []float64{5, 15, 30, 60, 90, 120, 180, 240},
		},
	)
)

func ObservePackGeneration(writer, status string, took time.Duration) {
	packGenerations.WithLabelValues(norm(writer), norm(status)).Inc()
	packGenerationDuration.Observe(took.Seconds())
}

func IncPackImage(status string) { packImages.WithLabelValues(norm(status)).Inc() }

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(httpPanics) }

var httpPanics = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_handler_panics_total",
		Help: "Recovered handler panics by route pattern.",
	},
	[]string{"route"},
)

func IncHTTPPanic(route string) {
	httpPanics.WithLabelValues(route).Inc()
}

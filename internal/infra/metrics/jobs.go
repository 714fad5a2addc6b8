package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(backgroundTasks) }

var backgroundTasks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_tasks_total",
		Help: "Worker pool tasks by status.",
	},
	[]string{"status"}, // completed|failed|rejected
)

func IncBackgroundTask(status string) {
	backgroundTasks.WithLabelValues(norm(status)).Inc()
}

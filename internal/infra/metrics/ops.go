package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(opsNotifications) }

var opsNotifications = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ops_notifications_total",
		Help: "Ops channel notifications by topic and status.",
	},
	[]string{"topic", "status"}, // status: sent|error|throttled|dropped
)

func IncOpsNotification(topic, status string) {
	opsNotifications.WithLabelValues(norm(topic), norm(status)).Inc()
}

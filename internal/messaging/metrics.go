package messaging

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationTotal counts operations by name and result kind ("ok" on success).
	operationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stagechat_messaging_operations_total",
		Help: "Messaging operations by operation and result",
	}, []string{"operation", "result"})

	// operationDuration tracks operation latency including store round trips.
	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stagechat_messaging_operation_duration_seconds",
		Help:    "Messaging operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"operation"})
)

// observe records one operation. Use as: defer observe("op", time.Now(), &err).
func observe(operation string, start time.Time, err *error) {
	result := "ok"
	if err != nil && *err != nil {
		result = Kind(*err)
	}
	operationTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

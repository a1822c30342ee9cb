package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table", "status"},
	)

	// 慢查询计数
	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"command"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 通知创建计数
	NotificationCreatedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_notifications_created_total",
			Help: "Total number of push notifications stored",
		},
	)

	// 列表缓存命中
	CacheRequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_cache_requests_total",
			Help: "Notification list cache lookups",
		},
		[]string{"result"}, // result: hit, miss, error
	)

	// 事件发布计数
	EventPublishedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the broker",
		},
		[]string{"routing_key", "status"}, // status: ok, error, rejected
	)
)

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table, status string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(command string) {
	DBSlowQueryCount.WithLabelValues(command).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementNotificationCreated 增加通知创建计数
func IncrementNotificationCreated() {
	NotificationCreatedCount.Inc()
}

// IncrementCacheRequest 记录缓存结果
func IncrementCacheRequest(result string) {
	CacheRequestCount.WithLabelValues(result).Inc()
}

// IncrementEventPublished 记录事件发布结果
func IncrementEventPublished(routingKey, status string) {
	EventPublishedCount.WithLabelValues(routingKey, status).Inc()
}

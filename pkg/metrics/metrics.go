package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	DBSlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"sql"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_training_duration_seconds",
			Help:    "Wall time of one predictor training run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	TrainingEpochs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_training_epochs",
			Help:    "Epochs run before training finished or stopped early",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		},
	)

	TrainingLoss = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "model_training_last_loss",
			Help: "Mean per-example loss of the most recent training run",
		},
	)

	// source: network, heuristic
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_reports_generated_total",
			Help: "Insight reports generated",
		},
		[]string{"source"},
	)

	// result: hit, miss, error
	InsightCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insight_cache_lookups_total",
			Help: "Insight cache lookups",
		},
		[]string{"result"},
	)
)

func RecordMQConsumeLatency(routingKey, queue, status string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue, status).Observe(float64(duration.Milliseconds()))
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts a slow query. Only the statement text is used as
// a label; duration is already logged by the caller.
func IncrementSlowQuery(sql string, _ time.Duration) {
	DBSlowQueryCount.WithLabelValues(sql).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordTraining(duration time.Duration, epochs int, loss float64) {
	TrainingDuration.Observe(duration.Seconds())
	TrainingEpochs.Observe(float64(epochs))
	TrainingLoss.Set(loss)
}

func IncrementReportGenerated(source string) {
	ReportsGenerated.WithLabelValues(source).Inc()
}

func IncrementCacheLookup(result string) {
	InsightCacheLookups.WithLabelValues(result).Inc()
}

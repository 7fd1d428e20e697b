package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	generationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybot_generation_requests_total",
			Help: "Total number of text-generation requests by pipeline stage and status.",
		},
		[]string{"stage", "status"},
	)
	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querybot_generation_latency_ms",
			Help:    "Text-generation latency in milliseconds by pipeline stage.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
		[]string{"stage"},
	)
	sqlExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybot_sql_executions_total",
			Help: "Total number of generated SQL executions by status.",
		},
		[]string{"status"},
	)
	sqlExecutionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querybot_sql_execution_latency_ms",
			Help:    "Generated SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
	)
	schemaIntrospectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybot_schema_introspections_total",
			Help: "Total number of live schema introspections by status.",
		},
		[]string{"status"},
	)
	reconfigurationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybot_reconfigurations_total",
			Help: "Total number of database reconfiguration attempts by status.",
		},
		[]string{"status"},
	)
	archiveWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querybot_archive_writes_total",
			Help: "Total number of exchange archive writes by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		generationRequestsTotal,
		generationLatencyMs,
		sqlExecutionsTotal,
		sqlExecutionLatencyMs,
		schemaIntrospectionsTotal,
		reconfigurationsTotal,
		archiveWritesTotal,
	)
}

func ObserveGeneration(stage string, err error, elapsed time.Duration) {
	generationRequestsTotal.WithLabelValues(stage, statusOf(err)).Inc()
	generationLatencyMs.WithLabelValues(stage).Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecution(err error, elapsed time.Duration) {
	sqlExecutionsTotal.WithLabelValues(statusOf(err)).Inc()
	sqlExecutionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveSchemaIntrospection(err error) {
	schemaIntrospectionsTotal.WithLabelValues(statusOf(err)).Inc()
}

func ObserveReconfiguration(err error) {
	reconfigurationsTotal.WithLabelValues(statusOf(err)).Inc()
}

func ObserveArchiveWrite(err error) {
	archiveWritesTotal.WithLabelValues(statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Package metrics holds the Prometheus collectors shared by the query engine,
// the service layer and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CellReads counts single-cell point reads issued by the row scanner.
	CellReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetq_cell_reads_total",
			Help: "Total number of single-cell reads performed while scanning",
		},
	)
	// RowsMatched observes how many rows each filter matched.
	RowsMatched = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetq_filter_rows_matched",
			Help:    "Number of rows matched per filter",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	// OperationsTotal counts engine operations (filter, fetch, update, ...).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetq_operations_total",
			Help: "Total number of query engine operations",
		},
		[]string{"operation", "status"},
	)
	// OperationDuration is the latency of engine operations.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetq_operation_duration_seconds",
			Help:    "Query engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	// OpenCursors is the number of live server-side cursors.
	OpenCursors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetq_open_cursors",
			Help: "Number of open query cursors",
		},
	)
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetq_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetq_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveOperation records the outcome and latency of an engine operation.
// Use with defer:
//
//	defer metrics.ObserveOperation("filter", time.Now(), &err)
func ObserveOperation(op string, start time.Time, errp *error) {
	status := "ok"
	if errp != nil && *errp != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(op, status).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

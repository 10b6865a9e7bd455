// Package metrics holds the Prometheus collectors for the index gateway, the
// query engine and the HTTP API.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

var (
	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matching",
			Name:      "index_operations_total",
			Help:      "Total number of index gateway operations",
		},
		[]string{"operation", "status"},
	)

	IndexDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matching",
			Name:      "index_documents_total",
			Help:      "Documents written or removed by the index gateway",
		},
		[]string{"operation", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "matching",
			Name:      "query_duration_seconds",
			Help:      "Query engine latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"query"},
	)

	QueryDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "matching",
			Name:      "query_degraded_total",
			Help:      "Queries answered with an empty page because the engine failed",
		},
		[]string{"query"},
	)
)

func init() {
	prometheus.MustRegister(IndexOperationsTotal)
	prometheus.MustRegister(IndexDocumentsTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryDegradedTotal)
}

// Status returns the status label for err.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	default:
		return StatusFailed
	}
}

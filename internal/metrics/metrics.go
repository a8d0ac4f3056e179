// Package metrics registers the prometheus collectors of the sync engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loadoutsync"

// Label names
const (
	LabelOperation = "operation"
	LabelResult    = "result"
	LabelKind      = "kind"
	LabelNamespace = "namespace"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultStale   = "stale"
	ResultSkipped = "skipped"
)

// Engine metrics
var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of sync engine operations by result",
		},
		[]string{LabelOperation, LabelResult},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of sync engine operations including the remote round trip",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelOperation},
	)

	StaleResultsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_dropped_total",
			Help:      "Fetch results discarded because the filter changed while they were in flight",
		},
		[]string{LabelKind},
	)

	PropagationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "propagation_attempts",
			Help:      "Reads needed until a confirmed write became visible",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	LocalLoadouts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "local_loadouts",
			Help:      "Number of loadouts held by the local store",
		},
	)
)

// Aggregate and cache metrics
var (
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Multi-document transactions by kind and result",
		},
		[]string{LabelKind, LabelResult},
	)

	StatsRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_recompute_total",
			Help:      "Aggregate stats recomputations by result",
		},
		[]string{LabelResult},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Durable cache lookups by namespace and result",
		},
		[]string{LabelNamespace, LabelResult},
	)
)

// ObserveOperation records the result and duration of one engine operation.
func ObserveOperation(operation string, start time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	OperationsTotal.WithLabelValues(operation, result).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Result maps an error onto the result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

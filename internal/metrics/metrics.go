package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikeOperations counts like service calls by operation and result.
	LikeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedlike_operations_total",
		Help: "Total number of like operations by operation and result",
	}, []string{"operation", "result"})

	// StatusCacheLookups counts status cache lookups by result: hit, miss or error.
	StatusCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedlike_status_cache_lookups_total",
		Help: "Total number of like status cache lookups",
	}, []string{"result"})

	// StatusCacheErrors counts failed cache calls by operation. They never fail a request.
	StatusCacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedlike_status_cache_errors_total",
		Help: "Total number of like status cache errors by operation",
	}, []string{"operation"})

	// ReconcileRuns counts counter reconciliations by result.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedlike_reconcile_runs_total",
		Help: "Total number of like counter reconciliations",
	}, []string{"result"})

	// ReconcileDropped counts items dropped because the reconcile queue was full.
	ReconcileDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedlike_reconcile_dropped_total",
		Help: "Total number of reconcile requests dropped on a full queue",
	})
)

const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultHit   = "hit"
	ResultMiss  = "miss"
)

package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	assignTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dragoman_assign_total",
		Help: "Decisions by mode and outcome",
	}, []string{"mode", "outcome"})

	poolEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dragoman_pool_entries",
		Help: "Pool entries by state",
	}, []string{"state"})

	poolOldestReadyAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dragoman_pool_oldest_ready_age_seconds",
		Help: "Age of the longest-waiting ready entry",
	})

	batchImprovement = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dragoman_batch_spread_improvement_hours",
		Help:    "Projected-spread improvement per balance batch",
		Buckets: prometheus.LinearBuckets(0, 0.5, 10),
	})

	storeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dragoman_store_retries_total",
		Help: "Commit conflicts and store retries inside assign calls",
	})

	scoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dragoman_score_duration_seconds",
		Help:    "Wall time of one scoring decision",
		Buckets: prometheus.DefBuckets,
	})
)

// ObservePoolStats exports the pool gauge set; called by the sweep loop
func ObservePoolStats(pending, ready, processing, failed int, oldestReadySeconds float64) {
	poolEntries.WithLabelValues("pending").Set(float64(pending))
	poolEntries.WithLabelValues("ready").Set(float64(ready))
	poolEntries.WithLabelValues("processing").Set(float64(processing))
	poolEntries.WithLabelValues("failed").Set(float64(failed))
	poolOldestReadyAge.Set(oldestReadySeconds)
}

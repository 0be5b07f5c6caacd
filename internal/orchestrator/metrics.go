package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worklog_update_cycles_total",
		Help: "Update cycles by source and outcome",
	}, []string{"source", "outcome"}) // outcome: written, unchanged, error

	cycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worklog_update_cycle_duration_seconds",
		Help:    "Time spent in one update cycle, publish included",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	conflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worklog_write_conflicts_total",
		Help: "Writes rejected because the file changed on disk",
	})

	publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worklog_publish_total",
		Help: "Publish attempts by result",
	}, []string{"result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worklog_cache_lookups_total",
		Help: "Document cache lookups by result",
	}, []string{"result"})
)

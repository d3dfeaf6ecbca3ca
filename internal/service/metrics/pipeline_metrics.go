package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketpull",
			Subsystem: "aggregation",
			Name:      "stage_latency_seconds",
			Help:      "Latency of aggregation pipeline stages",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpull",
			Subsystem: "aggregation",
			Name:      "stage_errors_total",
			Help:      "Errors by aggregation pipeline stage",
		},
		[]string{"stage"},
	)

	PipelineRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketpull",
			Subsystem: "aggregation",
			Name:      "pipeline_runs_total",
			Help:      "Completed aggregation pipeline passes",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(StageLatency, StageErrors, PipelineRuns)
	})
}

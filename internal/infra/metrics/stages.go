package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(stageDuration) }

var stageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages, labeled by unit and outcome.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	},
	[]string{"unit", "outcome"},
)

func ObserveStage(unit string, seconds float64, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	stageDuration.WithLabelValues(norm(unit), outcome).Observe(seconds)
}

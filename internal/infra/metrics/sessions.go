package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(sessionsTotal, sessionsRejectedTotal, sessionsInFlight)
}

var sessionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "research_sessions_total",
		Help: "Total number of research sessions finished, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var sessionsRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "research_sessions_rejected_total",
		Help: "Submissions rejected before a session was created.",
	},
	[]string{"reason"}, // 'validation', 'queue_full', 'rate_limited'
)

var sessionsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "research_sessions_in_flight",
		Help: "Sessions currently executing on the worker pool.",
	},
)

func IncSession(status string) {
	sessionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncRejected(reason string) {
	sessionsRejectedTotal.WithLabelValues(norm(reason)).Inc()
}

func SessionStarted()  { sessionsInFlight.Inc() }
func SessionFinished() { sessionsInFlight.Dec() }

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

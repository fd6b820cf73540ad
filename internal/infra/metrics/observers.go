package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(liveObservers, observerDropsTotal) }

var liveObservers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "progress_observers_live",
		Help: "Currently connected progress observers across all sessions.",
	},
)

var observerDropsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "progress_observer_drops_total",
		Help: "Observers removed because a send failed.",
	},
)

func ObserverRegistered()   { liveObservers.Inc() }
func ObserverUnregistered() { liveObservers.Dec() }
func ObserverDropped()      { observerDropsTotal.Inc() }

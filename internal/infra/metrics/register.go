package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// The session, stage and observer collectors each enqueue themselves from
// their file's init(); main installs the whole set with one MustRegister
// call before the /metrics endpoint is mounted.
var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every enqueued collector into the default registry.
// Subsequent calls are no-ops, so tests that build the full stack twice do
// not panic on duplicate registration.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(pending...)
	})
}

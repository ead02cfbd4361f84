// Package telemetry wraps a per-process prometheus.Registry so tests
// can instantiate multiple workers/monitors in one process without
// colliding on the default global registry.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the passed-in metrics registry every component takes a
// reference to, instead of registering against prometheus's global
// DefaultRegisterer.
type Registry struct {
	reg *prometheus.Registry
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Prometheus returns the underlying *prometheus.Registry for direct use
// by vector-metric constructors.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// Handler returns an http.Handler serving this registry's
// text/plain exposition format, for mounting at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// MustRegister registers cs against this registry, panicking on a
// duplicate-registration programmer error (consistent with the
// prometheus client's own idiom).
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

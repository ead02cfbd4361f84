package telemetry

import "github.com/prometheus/client_golang/prometheus"

// WorkerMetrics holds the worker process's exported counters.
type WorkerMetrics struct {
	LinesEmittedTotal *prometheus.CounterVec
	BytesEmittedTotal *prometheus.CounterVec
	HTTPErrorsTotal   *prometheus.CounterVec
}

// NewWorkerMetrics constructs and registers the worker's counters.
func NewWorkerMetrics(r *Registry) *WorkerMetrics {
	m := &WorkerMetrics{
		LinesEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lines_emitted_total",
			Help: "Lines emitted per family.",
		}, []string{"family_id"}),
		BytesEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bytes_emitted_total",
			Help: "Bytes emitted per family.",
		}, []string{"family_id"}),
		HTTPErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP errors talking to the control plane, by endpoint.",
		}, []string{"endpoint"}),
	}
	r.MustRegister(m.LinesEmittedTotal, m.BytesEmittedTotal, m.HTTPErrorsTotal)
	return m
}

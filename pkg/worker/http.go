package worker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aszhur/loadgen/pkg/telemetry"
)

// statusResponse is the GET /status body.
type statusResponse struct {
	WorkerID      string              `json:"worker_id"`
	HasAssignment bool                `json:"has_assignment"`
	Synthesizers  int                 `json:"synthesizers"`
	BufferSize    int                 `json:"buffer_size"`
	Assignment    interface{}         `json:"assignment,omitempty"`
	Timestamp     int64               `json:"timestamp"`
}

// Router builds the worker's HTTP surface: /health, /ready, /status.
// Metrics are served separately by MetricsRouter on their own listener,
// so a metrics scraper and the health-check caller never share a port.
func (w *Worker) Router(reg *telemetry.Registry) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", w.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", w.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/status", w.handleStatus).Methods(http.MethodGet)
	return r
}

// MetricsRouter builds the standalone /metrics listener's handler.
func MetricsRouter(reg *telemetry.Registry) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	return r
}

// isHealthy reports true iff an assignment is present and at least one
// synthesizer is loaded.
func (w *Worker) isHealthy() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.assignment != nil && len(w.families) > 0
}

func (w *Worker) handleHealth(rw http.ResponseWriter, r *http.Request) {
	if !w.isHealthy() {
		rw.WriteHeader(http.StatusServiceUnavailable)
		rw.Write([]byte("not ready"))
		return
	}
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("ok"))
}

func (w *Worker) handleReady(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusOK)
	rw.Write([]byte("READY"))
}

// IsReady reports the full readiness rule: assignment present, ≥1
// synthesizer loaded, and no connection pool stuck Reconnecting past
// ReadinessDeadline.
func (w *Worker) IsReady() bool {
	if !w.isHealthy() {
		return false
	}
	for _, pool := range w.opts.Pools {
		if since, stuck := pool.ReconnectingSince(); stuck && since > w.opts.ReadinessDeadline {
			return false
		}
	}
	return true
}

func (w *Worker) handleStatus(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	a := w.assignment
	n := len(w.families)
	w.mu.RUnlock()

	resp := statusResponse{
		WorkerID:      w.opts.WorkerID,
		HasAssignment: a != nil,
		Synthesizers:  n,
		BufferSize:    w.opts.Buffer.Len(),
		Timestamp:     time.Now().Unix(),
	}
	if a != nil {
		resp.Assignment = a
	}
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(resp)
}

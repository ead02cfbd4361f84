package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aszhur/loadgen/pkg/recipe"
	"github.com/aszhur/loadgen/pkg/telemetry"
)

type familyStatusJSON struct {
	FamilyID       string  `json:"family_id"`
	Status         string  `json:"status"`
	MeanJS         float64 `json:"js_categorical"`
	Wasserstein    float64 `json:"wasserstein_value"`
	KS             float64 `json:"ks_size"`
	ConsecutiveRed int     `json:"consecutive_red"`
	CriticalAlert  bool    `json:"critical_alert"`
}

func toFamilyStatusJSON(s FamilyScore) familyStatusJSON {
	out := familyStatusJSON{
		FamilyID:       s.FamilyID,
		Status:         s.Status.String(),
		ConsecutiveRed: s.ConsecutiveRed,
		CriticalAlert:  s.CriticalAlert,
	}
	if s.Result != nil {
		out.MeanJS = s.Result.MeanJS
		out.Wasserstein = s.Result.Wasserstein
		out.KS = s.Result.KS
	}
	return out
}

// Router builds the monitor's HTTP surface: /status, /families,
// POST /compute, POST /ingest, and /metrics bound to reg's exposition
// handler. /ingest receives batches of tee'd Samples over the wire from
// a worker process, since the two run as independent binaries rather
// than sharing an in-process channel.
func (m *Monitor) Router(reg *telemetry.Registry) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/status", m.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/families", m.handleFamilies).Methods(http.MethodGet)
	r.HandleFunc("/compute", m.handleCompute).Methods(http.MethodPost)
	r.HandleFunc("/ingest", m.handleIngest).Methods(http.MethodPost)
	if reg != nil {
		r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	}
	return r
}

func (m *Monitor) handleIngest(w http.ResponseWriter, r *http.Request) {
	var samples []recipe.Sample
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	for _, s := range samples {
		m.Ingest(s)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) handleStatus(w http.ResponseWriter, r *http.Request) {
	scores := m.Scores()
	summary := struct {
		FamilyCount int `json:"family_count"`
		RedCount    int `json:"red_count"`
		AmberCount  int `json:"amber_count"`
	}{}
	for _, s := range scores {
		switch s.Status {
		case Red:
			summary.RedCount++
		case Amber:
			summary.AmberCount++
		}
	}
	summary.FamilyCount = len(scores)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (m *Monitor) handleFamilies(w http.ResponseWriter, r *http.Request) {
	scores := m.Scores()
	out := make([]familyStatusJSON, 0, len(scores))
	for _, s := range scores {
		out = append(out, toFamilyStatusJSON(s))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (m *Monitor) handleCompute(w http.ResponseWriter, r *http.Request) {
	m.TriggerCompute()
	w.WriteHeader(http.StatusAccepted)
}

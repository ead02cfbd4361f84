package recipe

import "sort"

// Assignment is the control-plane-issued tuple directing a worker which
// families to emit at what rate.
type Assignment struct {
	WorkerID       string   `json:"worker_id"`
	FamilyIDs      []string `json:"family_id"`
	Multiplier     float64  `json:"multiplier"`
	BurstFactor    float64  `json:"burst_factor"`
	SchemaDrift    float64  `json:"schema_drift"`
	ErrorInjection float64  `json:"error_injection"`
	Endpoints      []string `json:"endpoints"`
	AuthCredential string   `json:"auth_credential"`
}

// ConfigKey is the {families, multiplier, burst_factor} projection of
// an Assignment that the Worker Core diffs on to decide whether to
// reconfigure. Endpoint/credential-only changes are handled by the
// connection pool separately and never trigger a synthesizer rebuild.
// Families are sorted so the key is comparable with google/go-cmp
// regardless of the order the control plane listed them in.
type ConfigKey struct {
	Families    []string
	Multiplier  float64
	BurstFactor float64
}

// Key builds the comparable projection described above.
func (a *Assignment) Key() ConfigKey {
	fams := append([]string(nil), a.FamilyIDs...)
	sort.Strings(fams)
	return ConfigKey{Families: fams, Multiplier: a.Multiplier, BurstFactor: a.BurstFactor}
}

// Sample is one produced record's statistical shadow: consumed by the
// emitter (as encoded bytes, elsewhere) and tee'd to the divergence
// monitor. Transient, never retained beyond a SlidingWindow's bound.
type Sample struct {
	FamilyID  string
	Timestamp int64
	Value     float64
	Source    string
	Tags      map[string]string
	LineSize  int
}

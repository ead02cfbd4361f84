package monitor

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reference is one family's reference statistical profile, loaded once
// at startup from reference_path. Its shape mirrors recipe.Recipe's
// tag_distributions/value_distribution/size_quantiles so the same
// json-iterator decode path serves both the control-plane client and
// this loader.
type Reference struct {
	FamilyID       string                         `json:"family_id"`
	MetricName     string                         `json:"metric_name"`
	TagDists       map[string]map[string]float64  `json:"tag_distributions"`
	ValueQuantiles []float64                      `json:"value_distribution"`
	SizeQuantiles  []float64                      `json:"size_quantiles"`
	IntensityCurve []float64                      `json:"intensity_curve,omitempty"`
}

// Catalog is the loaded set of References keyed by family_id.
type Catalog struct {
	byFamily map[string]*Reference
}

// LoadCatalog reads a JSON array of Reference entries from path.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference catalog: %w", err)
	}
	defer f.Close()

	var refs []Reference
	if err := json.NewDecoder(f).Decode(&refs); err != nil {
		return nil, fmt.Errorf("decoding reference catalog: %w", err)
	}

	c := &Catalog{byFamily: make(map[string]*Reference, len(refs))}
	for i := range refs {
		r := refs[i]
		c.byFamily[r.FamilyID] = &r
	}
	return c, nil
}

// Get returns the Reference for familyID, or nil if unknown.
func (c *Catalog) Get(familyID string) *Reference {
	if c == nil {
		return nil
	}
	return c.byFamily[familyID]
}

// Families lists every family_id in the catalog.
func (c *Catalog) Families() []string {
	out := make([]string, 0, len(c.byFamily))
	for id := range c.byFamily {
		out = append(out, id)
	}
	return out
}

package synth

import (
	"fmt"

	"github.com/aszhur/loadgen/pkg/protocol"
)

// applyDrift mutates rec in place with probability schemaDrift (the
// synthesizer's assignment-level drift rate, set via SetPolicy),
// injecting or mutating a tag to simulate a schema changing underfoot.
func (s *Synthesizer) applyDrift(rec *protocol.Record) {
	if s.schemaDrift <= 0 || s.src.Float64() >= s.schemaDrift {
		return
	}
	if rec.Tags == nil {
		rec.Tags = map[string]string{}
	}
	if s.src.Float64() < 0.5 {
		k := int(s.src.Float64() * 1000)
		rec.Tags[fmt.Sprintf("drift_tag_%d", k)] = fmt.Sprintf("value_%d", k)
	}
	if s.src.Float64() < 0.3 {
		for k, v := range rec.Tags {
			rec.Tags[k] = "drift_" + v
			break
		}
	}
}

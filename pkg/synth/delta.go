package synth

import (
	"sort"
	"strings"
)

// accumulateDelta adds value to the per-minute accumulator keyed by
// (name, source, tag-tuple) and returns the running minute total. The
// accumulator resets at minute boundaries, clocked against the
// record's own timestamp rather than wall time so replaying a canned
// sequence stays deterministic.
func (s *Synthesizer) accumulateDelta(now int64, source string, tags map[string]string, value float64) float64 {
	minute := now / 60

	s.mu.Lock()
	defer s.mu.Unlock()

	if minute != s.deltaMinute {
		s.deltaAccum = map[string]float64{}
		s.deltaMinute = minute
	}
	key := deltaKey(s.recipe.MetricName, source, tags)
	s.deltaAccum[key] += value
	return s.deltaAccum[key]
}

func deltaKey(name, source string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('|')
	b.WriteString(source)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

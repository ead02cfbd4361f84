package synth

import "strings"

// errorPolicy enumerates the five equally-weighted error-injection
// policies applyErrorInjection picks among.
type errorPolicy int

const (
	policyMalformedName errorPolicy = iota
	policyStripSource
	policyNaNValue
	policyTruncateHalf
	policyDoubleEquals
	numErrorPolicies
)

// applyErrorInjection mutates the already-encoded line with probability
// s.errorInjection, picking uniformly among the five policies. Because
// the record is already encoded, these policies operate on the text
// line directly, matching "replace the value with NaN" etc. as textual
// transforms rather than re-running encode.
func (s *Synthesizer) applyErrorInjection(line string) string {
	if s.errorInjection <= 0 || s.src.Float64() >= s.errorInjection {
		return line
	}
	policy := errorPolicy(int(s.src.Float64() * float64(numErrorPolicies)))
	if policy >= numErrorPolicies {
		policy = numErrorPolicies - 1
	}
	switch policy {
	case policyMalformedName:
		return "###" + line
	case policyStripSource:
		idx := strings.Index(line, "source=")
		if idx < 0 {
			return line
		}
		end := strings.IndexByte(line[idx:], ' ')
		if end < 0 {
			return line[:idx]
		}
		return line[:idx] + line[idx+end+1:]
	case policyNaNValue:
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			return line
		}
		return fields[0] + " NaN " + safeJoin(fields, 2)
	case policyTruncateHalf:
		return line[:len(line)/2]
	case policyDoubleEquals:
		return strings.Replace(line, "=", "==", 1)
	default:
		return line
	}
}

func safeJoin(fields []string, from int) string {
	if from >= len(fields) {
		return ""
	}
	return strings.Join(fields[from:], " ")
}

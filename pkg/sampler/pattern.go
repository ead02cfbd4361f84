package sampler

import (
	"strconv"
	"strings"
)

const (
	maxUnboundedLen = 12
	minUnboundedLen = 1
)

// Pattern is a weighted choice among a restricted regex-like subset:
// \d+, \d{k}, [a-z]+, [a-z]{k}, [A-Z]+, [A-Z]{k}, [a-zA-Z0-9]+.
// Unrecognized patterns are returned unchanged, per spec.
type Pattern struct {
	weighted *Weighted
}

// NewPattern builds a Pattern sampler from pattern string to weight.
func NewPattern(weights map[string]float64) *Pattern {
	return &Pattern{weighted: NewWeighted(weights)}
}

// Sample selects one pattern by weight and expands it.
func (p *Pattern) Sample(src Source) string {
	pat := p.weighted.Sample(src)
	return ExpandPattern(pat, src)
}

// ExpandPattern expands a single pattern string against src. Unknown
// patterns are returned unchanged.
func ExpandPattern(pat string, src Source) string {
	charset, length, ok := classify(pat, src)
	if !ok {
		return pat
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		idx := int(src.Float64() * float64(len(charset)))
		if idx >= len(charset) {
			idx = len(charset) - 1
		}
		b.WriteByte(charset[idx])
	}
	return b.String()
}

const (
	digits = "0123456789"
	lower  = "abcdefghijklmnopqrstuvwxyz"
	upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alnum  = digits + lower + upper
)

func classify(pat string, src Source) (charset string, length int, ok bool) {
	switch {
	case pat == `\d+`:
		return digits, boundedLen(src), true
	case pat == `[a-z]+`:
		return lower, boundedLen(src), true
	case pat == `[A-Z]+`:
		return upper, boundedLen(src), true
	case pat == `[a-zA-Z0-9]+`:
		return alnum, boundedLen(src), true
	}
	if k, parsed, prefixed := braced(pat, `\d{`); prefixed {
		return digits, k, parsed
	}
	if k, parsed, prefixed := braced(pat, `[a-z]{`); prefixed {
		return lower, k, parsed
	}
	if k, parsed, prefixed := braced(pat, `[A-Z]{`); prefixed {
		return upper, k, parsed
	}
	return "", 0, false
}

// braced parses "<prefix>k}" returning the integer k. prefixed reports
// whether pat even matched prefix/suffix for this class at all
// (distinguishing "not this class" from "this class but malformed",
// which classify must still treat as "no match").
func braced(pat, prefix string) (k int, parsed bool, prefixed bool) {
	if !strings.HasPrefix(pat, prefix) || !strings.HasSuffix(pat, "}") {
		return 0, false, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(pat, prefix), "}")
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return 0, false, true
	}
	return n, true, true
}

func boundedLen(src Source) int {
	span := maxUnboundedLen - minUnboundedLen + 1
	return minUnboundedLen + int(src.Float64()*float64(span))
}

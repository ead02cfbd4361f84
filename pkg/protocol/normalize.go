package protocol

import "strings"

// NormalizeDeltaGlyph rewrites the accepted alternate delta glyph
// (U+0394, Greek capital delta) to the canonical emitted glyph (U+2206)
// wherever it prefixes a name. Used by components that may receive
// names sourced from a capture that used the alternate codepoint.
func NormalizeDeltaGlyph(name string) string {
	if strings.HasPrefix(name, AltDeltaGlyph) {
		return DeltaGlyph + strings.TrimPrefix(name, AltDeltaGlyph)
	}
	return name
}

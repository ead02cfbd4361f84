// Package protocol formats metric, delta counter, histogram and span
// records into the text wire grammar consumed downstream. It performs no
// I/O; encode is a total function over well-formed records.
package protocol

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies which of the four line shapes a Record encodes as.
type Kind int

const (
	KindMetric Kind = iota
	KindDelta
	KindHistogram
	KindSpan
)

// DeltaGlyph is the character the encoder emits to prefix delta counter
// names. AltDeltaGlyph is accepted on input (e.g. decoded from a capture)
// but never emitted.
const (
	DeltaGlyph    = "∆" // ∆ INCREMENT
	AltDeltaGlyph = "Δ" // Δ GREEK CAPITAL LETTER DELTA
)

// Centroid summarizes one cluster of a histogram record.
type Centroid struct {
	Count int
	Mean  float64
}

// Record is the single type passed to Encode; Kind selects which fields
// are meaningful.
type Record struct {
	Kind Kind

	Name      string
	Value     float64
	Timestamp int64 // unix seconds for metric/delta/histogram
	Source    string
	Tags      map[string]string

	// Histogram-only.
	Granularity string // "M", "H", or "D"
	Centroids   []Centroid

	// Span-only.
	Operation   string
	StartMS     int64
	DurationMS  int64
}

// Encode formats r as one or more newline-terminated lines. Histogram
// records produce two lines; all others produce one.
func Encode(r Record) string {
	switch r.Kind {
	case KindMetric:
		return encodeMetric(r, "")
	case KindDelta:
		return encodeMetric(r, DeltaGlyph)
	case KindHistogram:
		return encodeHistogram(r)
	case KindSpan:
		return encodeSpan(r)
	default:
		return encodeMetric(r, "")
	}
}

func encodeMetric(r Record, prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(quoteIfNeeded(r.Name))
	b.WriteByte(' ')
	b.WriteString(FormatValue(r.Value))
	if r.Timestamp != 0 {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	}
	b.WriteString(" source=")
	b.WriteString(quoteIfNeeded(r.Source))
	writeSortedTags(&b, r.Tags)
	b.WriteByte('\n')
	return b.String()
}

func encodeHistogram(r Record) string {
	var b strings.Builder
	b.WriteByte('!')
	g := r.Granularity
	if g == "" {
		g = "M"
	}
	b.WriteString(g)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(r.Timestamp, 10))
	for _, c := range r.Centroids {
		b.WriteString(" #")
		b.WriteString(strconv.Itoa(c.Count))
		b.WriteByte(' ')
		b.WriteString(FormatValue(c.Mean))
	}
	b.WriteByte('\n')
	b.WriteString(quoteIfNeeded(r.Name))
	b.WriteString(" source=")
	b.WriteString(quoteIfNeeded(r.Source))
	writeSortedTags(&b, r.Tags)
	b.WriteByte('\n')
	return b.String()
}

func encodeSpan(r Record) string {
	var b strings.Builder
	b.WriteString(quoteIfNeeded(r.Operation))
	b.WriteString(" source=")
	b.WriteString(quoteIfNeeded(r.Source))
	writeSortedTags(&b, r.Tags)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(r.StartMS, 10))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(r.DurationMS, 10))
	b.WriteByte('\n')
	return b.String()
}

func writeSortedTags(b *strings.Builder, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(quoteIfNeeded(k))
		b.WriteByte('=')
		b.WriteString(quoteIfNeeded(tags[k]))
	}
}

// FormatValue renders v with the magnitude-selected precision the wire
// grammar expects. NaN and infinities collapse to "0".
func FormatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	abs := math.Abs(v)
	var prec int
	switch {
	case abs < 1e-3 && abs != 0:
		prec = 6
	case abs < 1:
		prec = 3
	case abs < 1e3:
		prec = 1
	default:
		prec = 0
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func sortStrings(s []string) {
	// small, allocation-free insertion sort; tag counts per record are
	// tiny so this beats pulling in sort for a handful of elements.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

package synth

import (
	"fmt"
	"math"
	"strings"

	"github.com/aszhur/loadgen/pkg/protocol"
	"github.com/aszhur/loadgen/pkg/recipe"
)

// NextRecord produces one encoded record (two lines for a histogram)
// for wall-clock time now (unix seconds) at the given multiplier:
// sample a value and tags, compose the record for the recipe's schema
// kind, apply drift, encode, then apply error injection to the encoded
// text.
func (s *Synthesizer) NextRecord(now int64, multiplier float64) string {
	r := s.recipe
	kind := s.decideKind()

	value := s.sampleValue() * multiplier
	source := s.sampleSource()
	tags := s.sampleTags()

	var rec protocol.Record
	switch kind {
	case recipe.KindHistogram:
		rec = s.composeHistogram(r, now, source, tags, multiplier)
	case recipe.KindSpan:
		rec = s.composeSpan(now, source, tags)
	case recipe.KindDelta:
		rec = s.composeMetric(protocol.KindDelta, r, now, s.accumulateDelta(now, source, tags, value), source, tags)
	default:
		rec = s.composeMetric(protocol.KindMetric, r, now, value, source, tags)
	}

	s.applyDrift(&rec)
	line := protocol.Encode(rec)
	line = s.applyErrorInjection(line)

	s.teeSample(recipe.Sample{
		FamilyID:  r.FamilyID,
		Timestamp: now,
		Value:     value,
		Source:    source,
		Tags:      tags,
		LineSize:  len(line),
	})
	return line
}

func (s *Synthesizer) decideKind() recipe.SchemaKind {
	switch s.recipe.Schema.Kind {
	case recipe.KindHistogram:
		if s.src.Float64() < 0.1 {
			return recipe.KindHistogram
		}
		return recipe.KindMetric
	case recipe.KindSpan:
		return recipe.KindSpan
	case recipe.KindDelta:
		return recipe.KindDelta
	default:
		return recipe.KindMetric
	}
}

func (s *Synthesizer) sampleValue() float64 {
	return s.valueSampler.Sample(s.src)
}

func (s *Synthesizer) sampleSource() string {
	switch {
	case s.sourceSampler != nil:
		return s.sourceSampler.Sample(s.src)
	case s.sourcePattern != nil:
		return s.sourcePattern.Sample(s.src)
	default:
		return fmt.Sprintf("host-%d", int(s.src.Float64()*1000))
	}
}

func (s *Synthesizer) sampleTags() map[string]string {
	tags := map[string]string{}
	for key, ts := range s.recipe.Schema.TagKeys {
		if s.src.Float64() >= ts.Presence {
			continue
		}
		switch {
		case s.tagSamplers[key] != nil:
			tags[key] = s.tagSamplers[key].Sample(s.src)
		case s.tagPatterns[key] != nil:
			tags[key] = s.tagPatterns[key].Sample(s.src)
		default:
			tags[key] = heuristicDefault(key, s.src)
		}
	}
	return tags
}

// heuristicDefault produces a plausible value keyed on the tag name
// itself when no distribution or pattern was supplied for it.
func heuristicDefault(key string, src interface{ Float64() float64 }) string {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "env"):
		return "prod"
	case strings.Contains(lower, "region"):
		return "us-east-1"
	case strings.Contains(lower, "status"):
		return "200"
	default:
		return fmt.Sprintf("%s-%d", lower, int(src.Float64()*100))
	}
}

func (s *Synthesizer) composeMetric(kind protocol.Kind, r *recipe.Recipe, now int64, value float64, source string, tags map[string]string) protocol.Record {
	return protocol.Record{
		Kind:      kind,
		Name:      r.MetricName,
		Value:     value,
		Timestamp: now,
		Source:    source,
		Tags:      tags,
	}
}

func (s *Synthesizer) composeSpan(now int64, source string, tags map[string]string) protocol.Record {
	duration := int64(exponentialDuration(s.src, 50))
	return protocol.Record{
		Kind:       protocol.KindSpan,
		Operation:  s.recipe.MetricName,
		Source:     source,
		Tags:       tags,
		StartMS:    now * 1000,
		DurationMS: duration,
	}
}

func exponentialDuration(src interface{ Float64() float64 }, meanMS float64) float64 {
	u := src.Float64()
	if u <= 0 {
		u = 1e-12
	}
	return -meanMS * math.Log(u)
}

package monitor

import (
	"fmt"
	"math"
	"sort"

	"github.com/aszhur/loadgen/pkg/recipe"
	"github.com/aszhur/loadgen/pkg/sampler"
)

const minSamplesForCompute = 10

// quantileProbes are the matched probabilities at which reference and
// window quantile vectors are compared for Wasserstein/KS.
var quantileProbes = []float64{0.01, 0.05, 0.5, 0.95, 0.99}

// ComputeError reports insufficient samples or a NaN in the window.
// The family's tick is skipped; no status change results.
type ComputeError struct {
	FamilyID string
	Reason   string
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("divergence compute skipped for %s: %s", e.FamilyID, e.Reason)
}

// TagDivergence is one tag key's JS score against the reference.
type TagDivergence struct {
	Tag   string
	Score float64
}

// Result is one family's single-tick divergence computation.
type Result struct {
	FamilyID      string
	TagJS         []TagDivergence
	MeanJS        float64
	Wasserstein   float64
	KS            float64
	PearsonCorr   float64
	HasPearson    bool
}

// Compute runs the per-minute divergence computation for one family
// against its reference, over a snapshot of its sliding window.
// Returns ComputeError when the window has fewer than 10 samples.
func Compute(familyID string, ref *Reference, samples []recipe.Sample) (*Result, error) {
	if len(samples) < minSamplesForCompute {
		return nil, &ComputeError{FamilyID: familyID, Reason: "fewer than 10 samples"}
	}
	if ref == nil {
		return nil, &ComputeError{FamilyID: familyID, Reason: "no reference entry"}
	}

	res := &Result{FamilyID: familyID}

	res.TagJS = categoricalJS(ref.TagDists, samples)
	if len(res.TagJS) > 0 {
		var sum float64
		for _, td := range res.TagJS {
			sum += td.Score
		}
		res.MeanJS = sum / float64(len(res.TagJS))
	}

	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		values = append(values, s.Value)
	}
	if len(values) == 0 {
		return nil, &ComputeError{FamilyID: familyID, Reason: "all values NaN/Inf"}
	}
	sort.Float64s(values)

	res.Wasserstein = wassersteinLike(ref.ValueQuantiles, values)
	res.KS = ksLike(ref.SizeQuantiles, lineSizes(samples))

	if len(ref.IntensityCurve) > 0 {
		if corr, ok := pearsonAgainstIntensity(samples, ref.IntensityCurve); ok {
			res.PearsonCorr = corr
			res.HasPearson = true
		}
	}

	return res, nil
}

// categoricalJS computes the Jensen-Shannon divergence per declared tag
// key between its reference distribution and the window's empirical
// distribution, normalized by ln2 so scores lie in [0,1].
func categoricalJS(refDists map[string]map[string]float64, samples []recipe.Sample) []TagDivergence {
	var out []TagDivergence
	keys := make([]string, 0, len(refDists))
	for k := range refDists {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, tag := range keys {
		refDist := refDists[tag]
		empirical := empiricalTagDist(samples, tag)
		if len(empirical) == 0 {
			continue
		}
		out = append(out, TagDivergence{Tag: tag, Score: jensenShannon(refDist, empirical)})
	}
	return out
}

func empiricalTagDist(samples []recipe.Sample, tag string) map[string]float64 {
	counts := map[string]float64{}
	var total float64
	for _, s := range samples {
		v, ok := s.Tags[tag]
		if !ok {
			continue
		}
		counts[v]++
		total++
	}
	if total == 0 {
		return nil
	}
	for k := range counts {
		counts[k] /= total
	}
	return counts
}

// jensenShannon computes ½·Σ[p·log(p/m) + q·log(q/m)] with m=(p+q)/2,
// normalized by ln2, over the union of keys in p and q.
func jensenShannon(p, q map[string]float64) float64 {
	keys := map[string]struct{}{}
	for k := range p {
		keys[k] = struct{}{}
	}
	for k := range q {
		keys[k] = struct{}{}
	}

	var sum float64
	for k := range keys {
		pv := p[k]
		qv := q[k]
		m := (pv + qv) / 2
		if m == 0 {
			continue
		}
		if pv > 0 {
			sum += pv * math.Log(pv/m)
		}
		if qv > 0 {
			sum += qv * math.Log(qv/m)
		}
	}
	js := sum / 2 / math.Ln2
	if js < 0 {
		js = 0
	}
	return js
}

// wassersteinLike is Σ|q_ref[i]-q_cur[i]| / (q_ref[last]-q_ref[first]) / k
// over the matched quantileProbes.
func wassersteinLike(refQuantiles []float64, sortedValues []float64) float64 {
	if len(refQuantiles) < 2 {
		return 0
	}
	span := refQuantiles[len(refQuantiles)-1] - refQuantiles[0]
	if span == 0 {
		span = 1
	}
	var sum float64
	for _, p := range quantileProbes {
		refV := sampler.InterpolateAt(refQuantiles, p)
		curV := empiricalQuantile(sortedValues, p)
		sum += math.Abs(refV - curV)
	}
	return sum / span / float64(len(quantileProbes))
}

// ksLike is the corrected KS-like statistic: the supremum of the
// quantile-value delta between reference and window size quantiles at
// matched probabilities, normalized the same way as the Wasserstein
// computation.
func ksLike(refSizeQuantiles []float64, sortedSizes []float64) float64 {
	if len(refSizeQuantiles) < 2 || len(sortedSizes) == 0 {
		return 0
	}
	span := refSizeQuantiles[len(refSizeQuantiles)-1] - refSizeQuantiles[0]
	if span == 0 {
		span = 1
	}
	var maxDelta float64
	for _, p := range quantileProbes {
		refV := sampler.InterpolateAt(refSizeQuantiles, p)
		curV := empiricalQuantile(sortedSizes, p)
		delta := math.Abs(refV-curV) / span
		if delta > maxDelta {
			maxDelta = delta
		}
	}
	return maxDelta
}

// empiricalQuantile linearly interpolates the value at probability p
// within a pre-sorted slice.
func empiricalQuantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	idx := int(math.Floor(pos))
	if idx >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(idx)
	return sorted[idx] + frac*(sorted[idx+1]-sorted[idx])
}

func lineSizes(samples []recipe.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s.LineSize)
	}
	sort.Float64s(out)
	return out
}

// pearsonAgainstIntensity correlates per-minute sample counts within
// the window against recipe.intensity_curve at the corresponding
// minutes-of-day.
func pearsonAgainstIntensity(samples []recipe.Sample, intensity []float64) (float64, bool) {
	if len(intensity) == 0 {
		return 0, false
	}
	countsByMinute := map[int]float64{}
	for _, s := range samples {
		minute := int((s.Timestamp / 60) % int64(len(intensity)))
		countsByMinute[minute]++
	}
	if len(countsByMinute) < 2 {
		return 0, false
	}

	var xs, ys []float64
	for minute, count := range countsByMinute {
		xs = append(xs, count)
		ys = append(ys, intensity[minute])
	}
	return pearson(xs, ys), true
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n

	var num, dx2, dy2 float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	denom := math.Sqrt(dx2 * dy2)
	if denom == 0 {
		return 0
	}
	return num / denom
}

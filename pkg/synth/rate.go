package synth

import "time"

// TargetRate returns the current target emission rate in records/sec
// for wall time now: rate = base * intensity[minute] * multiplier, with
// a 10% chance of a Hawkes-like bursty inflation of the intensity by
// 1+(burst-1)*U.
func (s *Synthesizer) TargetRate(now time.Time, base, multiplier, burst float64) float64 {
	minute := MinuteOfDay(now)
	intensity := s.recipe.IntensityCurve[minute]
	if s.src.Float64() < 0.1 {
		intensity *= 1 + (burst-1)*s.src.Float64()
	}
	return base * intensity * multiplier
}

// MinuteOfDay returns t's minute-of-day in [0,1439], in t's own
// location (callers pass UTC for reproducibility against a recipe
// authored against a UTC day).
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Package fairness implements the rolling-hours gap math behind the
// fairness score and the max-gap eligibility bound
package fairness

import (
	"github.com/samber/lo"
)

// MinHours returns the smallest hour total in the map, zero-hour
// interpreters included; zero for an empty map
func MinHours(hours map[string]float64) float64 {
	if len(hours) == 0 {
		return 0
	}
	return lo.Min(lo.Values(hours))
}

// Gap returns candidate hours minus the roster minimum. Absent ids count
// as zero hours
func Gap(hours map[string]float64, id string) float64 {
	return hours[id] - MinHours(hours)
}

// Score maps a gap onto [0,1]: 1 at the roster minimum, falling linearly
// to 0 at maxGap. A non-positive maxGap collapses to a step so the score
// is never NaN
func Score(gap, maxGapHours float64) float64 {
	if gap <= 0 {
		return 1
	}
	if maxGapHours <= 0 {
		return 0
	}
	return clamp(1-gap/maxGapHours, 0, 1)
}

// AdjustNewcomer scales a newcomer's fairness score by the roster
// adjustment factor and re-clamps to [0,1]
func AdjustNewcomer(score, factor float64) float64 {
	if factor < 1 {
		factor = 1
	}
	return clamp(score*factor, 0, 1)
}

// WouldExceedMaxGap simulates granting id an extra duration of work and
// reports whether the projected spread would break the bound. The bound is
// measured across interpreters holding at least one assignment after the
// grant; interpreters still at zero hours sit outside it
func WouldExceedMaxGap(hours map[string]float64, id string, durationHours, maxGapHours float64) bool {
	projected := hours[id] + durationHours
	minH, maxH := projected, projected
	for other, h := range hours {
		if other == id || h <= 0 {
			continue
		}
		if h < minH {
			minH = h
		}
		if h > maxH {
			maxH = h
		}
	}
	return maxH-minH > maxGapHours
}

// Spread returns max minus min over every value in the map, zeros included;
// zero for an empty map. Batch planning projects this value
func Spread(hours map[string]float64) float64 {
	if len(hours) == 0 {
		return 0
	}
	vals := lo.Values(hours)
	return lo.Max(vals) - lo.Min(vals)
}

// Apply returns a copy of hours with duration added to id
func Apply(hours map[string]float64, id string, durationHours float64) map[string]float64 {
	out := make(map[string]float64, len(hours)+1)
	for k, v := range hours {
		out[k] = v
	}
	out[id] += durationHours
	return out
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

package ranking

import (
	"math"
	"time"
)

// recencyHalfLife controls exponential decay of interaction recency.
// An event one day old contributes e^-1 of a fresh one.
const recencyHalfLifeSeconds = 86400.0

// ProximityWeight computes a distance-based proximity score normalized to (0, 1].
//
// Formula: 1 / (1 + distanceKm / 100) - gives 1.0 at the reference point,
// 0.5 at 100km, decaying gradually with distance.
func ProximityWeight(distanceKm float64) float64 {
	if distanceKm < 0 {
		distanceKm = 0
	}
	return 1.0 / (1.0 + distanceKm/100.0)
}

// RecencyDecay computes the exponential decay factor for an event that
// occurred at t, evaluated at now. Events in the future decay as if fresh.
//
// Formula: e^(-age_seconds / 86400), so a day-old event is worth ~0.37 of a
// fresh one and a week-old event is nearly negligible.
func RecencyDecay(t, now time.Time) float64 {
	age := now.Sub(t).Seconds()
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-age / recencyHalfLifeSeconds)
}

// VolumeFactor normalizes a raw interaction count into [0, 2]. Ten events
// saturate at 1.0; extremely active articles can reach 2.0 at twenty events.
func VolumeFactor(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(float64(count)/10.0, 2.0)
}

// EngagementFactor normalizes a decayed, kind-weighted interaction sum into
// [0, 1]. A weighted sum of 5 saturates the factor.
func EngagementFactor(weightedSum float64) float64 {
	if weightedSum <= 0 {
		return 0
	}
	return math.Min(weightedSum/5.0, 1.0)
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

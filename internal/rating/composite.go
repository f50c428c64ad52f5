package rating

import (
	"math"
	"time"
)

// Composite folds a player's best verified technique scores into one scalar.
// Every technique weighs equally: the mean keeps "more verified techniques,
// better scores" monotonic without letting a single technique dominate.
// Returns nil until at least one technique has counted.
func Composite(bestScores []float64) *float64 {
	if len(bestScores) == 0 {
		return nil
	}
	var sum float64
	for _, s := range bestScores {
		sum += s
	}
	mean := sum / float64(len(bestScores))
	return &mean
}

// DecayPolicy controls how the tournament-seeding score drifts below the
// composite score while a player is inactive.
type DecayPolicy struct {
	Grace       time.Duration
	DailyFactor float64
}

// EffectiveScore returns the composite score decayed for inactivity. Within
// the grace period since the last verified achievement it equals the
// composite; past it, the score shrinks by DailyFactor per idle day. The
// result never exceeds the composite and never goes below zero.
func EffectiveScore(composite float64, lastAchieved, now time.Time, policy DecayPolicy) float64 {
	idle := now.Sub(lastAchieved) - policy.Grace
	if idle <= 0 {
		return composite
	}
	days := idle.Hours() / 24
	decayed := composite * math.Pow(policy.DailyFactor, days)
	if decayed < 0 {
		return 0
	}
	return decayed
}

package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeNilWithoutScores(t *testing.T) {
	assert.Nil(t, Composite(nil))
	assert.Nil(t, Composite([]float64{}))
}

func TestCompositeMean(t *testing.T) {
	got := Composite([]float64{8.0})
	require.NotNil(t, got)
	assert.InDelta(t, 8.0, *got, 1e-9)

	got = Composite([]float64{6.0, 8.0, 10.0})
	require.NotNil(t, got)
	assert.InDelta(t, 8.0, *got, 1e-9)
}

func TestCompositeMoreVerifiedTechniquesRaiseScore(t *testing.T) {
	low := Composite([]float64{4.0, 4.0})
	higher := Composite([]float64{4.0, 6.0})
	require.NotNil(t, low)
	require.NotNil(t, higher)
	assert.Greater(t, *higher, *low)
}

func TestEffectiveScoreWithinGrace(t *testing.T) {
	policy := DecayPolicy{Grace: 30 * 24 * time.Hour, DailyFactor: 0.995}
	now := time.Now().UTC()

	got := EffectiveScore(8.0, now.Add(-24*time.Hour), now, policy)
	assert.InDelta(t, 8.0, got, 1e-9)
}

func TestEffectiveScoreDecaysPastGrace(t *testing.T) {
	policy := DecayPolicy{Grace: 30 * 24 * time.Hour, DailyFactor: 0.995}
	now := time.Now().UTC()

	got := EffectiveScore(8.0, now.Add(-60*24*time.Hour), now, policy)
	assert.Less(t, got, 8.0)
	assert.Greater(t, got, 0.0)
}

func TestEffectiveScoreNeverExceedsComposite(t *testing.T) {
	policy := DecayPolicy{Grace: time.Hour, DailyFactor: 0.9}
	now := time.Now().UTC()

	for _, idle := range []time.Duration{0, time.Hour, 48 * time.Hour, 365 * 24 * time.Hour} {
		got := EffectiveScore(7.5, now.Add(-idle), now, policy)
		assert.LessOrEqual(t, got, 7.5)
	}
}

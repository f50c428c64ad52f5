package trust

import (
	"testing"
	"time"

	"github.com/mhenrik/skillrank/internal/evidence"
	"github.com/mhenrik/skillrank/internal/utils"
	"github.com/stretchr/testify/assert"
)

func testPolicy() Policy {
	return Policy{
		BaseScore:       40,
		RecencyCredit:   30,
		DeviceCredit:    30,
		VerifyThreshold: 60,
		TrustWindow:     72 * time.Hour,
	}
}

func TestEvaluateFullSignalsVerifies(t *testing.T) {
	engine := NewEngine(testPolicy())
	now := time.Now().UTC()

	res := engine.Evaluate(Signals{
		HasMetadata: true,
		CapturedAt:  utils.Ptr(now.Add(-2 * time.Hour)),
		SubmittedAt: now,
		DeviceID:    utils.Ptr("ios-0c21"),
	})

	assert.Equal(t, 100, res.Score)
	assert.Equal(t, evidence.StatusVerified, res.Status)
	assert.True(t, res.HasMetadata)
	assert.True(t, res.RecentCapture)
	assert.True(t, res.DeviceAttributed)
}

func TestEvaluateNoMetadataGoesToPeerReview(t *testing.T) {
	engine := NewEngine(testPolicy())

	res := engine.Evaluate(Signals{SubmittedAt: time.Now().UTC()})

	assert.Equal(t, 0, res.Score)
	assert.Equal(t, evidence.StatusPendingReview, res.Status)
}

func TestEvaluateStaleCaptureLosesRecencyCredit(t *testing.T) {
	engine := NewEngine(testPolicy())
	now := time.Now().UTC()

	res := engine.Evaluate(Signals{
		HasMetadata: true,
		CapturedAt:  utils.Ptr(now.Add(-100 * time.Hour)),
		SubmittedAt: now,
	})

	assert.Equal(t, 40, res.Score)
	assert.False(t, res.RecentCapture)
	assert.Equal(t, evidence.StatusPendingReview, res.Status)
}

func TestEvaluateFutureCaptureEarnsNoRecency(t *testing.T) {
	engine := NewEngine(testPolicy())
	now := time.Now().UTC()

	res := engine.Evaluate(Signals{
		HasMetadata: true,
		CapturedAt:  utils.Ptr(now.Add(time.Hour)),
		SubmittedAt: now,
	})

	assert.False(t, res.RecentCapture)
}

func TestEvaluateBorderlineIsNeverAutoRejected(t *testing.T) {
	engine := NewEngine(testPolicy())

	// Metadata only: 40 points, below threshold. Deferred to humans, not
	// rejected.
	res := engine.Evaluate(Signals{HasMetadata: true, SubmittedAt: time.Now().UTC()})
	assert.Equal(t, evidence.StatusPendingReview, res.Status)
}

func TestEvaluateTamperForcesRejection(t *testing.T) {
	engine := NewEngine(testPolicy())
	now := time.Now().UTC()

	res := engine.Evaluate(Signals{
		HasMetadata:    true,
		CapturedAt:     utils.Ptr(now.Add(-time.Hour)),
		SubmittedAt:    now,
		DeviceID:       utils.Ptr("ios-0c21"),
		TamperDetected: true,
	})

	// Tampering wins regardless of a perfect signal score.
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, evidence.StatusRejected, res.Status)
}

func TestEvaluateScoreIsCapped(t *testing.T) {
	policy := testPolicy()
	policy.BaseScore = 90
	policy.DeviceCredit = 90
	engine := NewEngine(policy)

	res := engine.Evaluate(Signals{
		HasMetadata: true,
		SubmittedAt: time.Now().UTC(),
		DeviceID:    utils.Ptr("ios-0c21"),
	})

	assert.Equal(t, 100, res.Score)
}

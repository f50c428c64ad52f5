package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mhenrik/skillrank/internal/evidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePeerReviewRejectsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)
	ownerID := createTestPlayer(t, db, "owner")
	reviewerID := createTestPlayer(t, db, "reviewer")
	now := time.Now().UTC()

	evidenceID := createTestEvidence(t, db, ownerID, "serve", 7.0, now)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, evidenceStore.CreatePeerReview(ctx, tx, &evidence.PeerReview{
		ID: uuid.New(), EvidenceID: evidenceID, ReviewerID: reviewerID,
		Verdict: evidence.VerdictApprove, CreatedAt: now,
	}))
	require.NoError(t, tx.Commit())

	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	err = evidenceStore.CreatePeerReview(ctx, tx, &evidence.PeerReview{
		ID: uuid.New(), EvidenceID: evidenceID, ReviewerID: reviewerID,
		Verdict: evidence.VerdictReject, CreatedAt: now,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, tx.Rollback())

	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	approve, reject, err := evidenceStore.CountVerdicts(ctx, tx, evidenceID)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	assert.Equal(t, 1, approve)
	assert.Equal(t, 0, reject)
}

func TestTransitionStatusIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)
	ownerID := createTestPlayer(t, db, "owner")
	now := time.Now().UTC()

	evidenceID := createTestEvidence(t, db, ownerID, "serve", 7.0, now)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	moved, err := evidenceStore.TransitionStatus(ctx, tx, evidenceID, evidence.StatusPendingReview, evidence.StatusVerified, 2, 0)
	require.NoError(t, err)
	assert.True(t, moved)
	require.NoError(t, tx.Commit())

	// The losing caller of a race sees zero rows changed.
	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	moved, err = evidenceStore.TransitionStatus(ctx, tx, evidenceID, evidence.StatusPendingReview, evidence.StatusRejected, 0, 2)
	require.NoError(t, err)
	assert.False(t, moved)
	require.NoError(t, tx.Rollback())

	v, err := evidenceStore.GetVerification(ctx, evidenceID)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusVerified, v.Status)
}

func TestTransitionStatusRejectsIllegalMove(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)
	ownerID := createTestPlayer(t, db, "owner")
	evidenceID := createTestEvidence(t, db, ownerID, "serve", 7.0, time.Now().UTC())

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = evidenceStore.TransitionStatus(ctx, tx, evidenceID, evidence.StatusVerified, evidence.StatusPendingReview, 0, 0)
	assert.Error(t, err)
}

func TestReviewQueueEligibility(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)
	ownerID := createTestPlayer(t, db, "owner")
	reviewerID := createTestPlayer(t, db, "reviewer")
	now := time.Now().UTC()

	oldest := createTestEvidence(t, db, ownerID, "serve", 7.0, now.Add(-2*time.Hour))
	newest := createTestEvidence(t, db, ownerID, "smash", 6.0, now.Add(-time.Hour))
	own := createTestEvidence(t, db, reviewerID, "serve", 5.0, now)

	items, err := evidenceStore.ReviewQueue(ctx, reviewerID, 10)
	require.NoError(t, err)
	require.Len(t, items, 2, "own evidence must not show up")
	assert.Equal(t, oldest, items[0].EvidenceID, "oldest first")
	assert.Equal(t, newest, items[1].EvidenceID)

	// Already-reviewed evidence drops out of the queue.
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, evidenceStore.CreatePeerReview(ctx, tx, &evidence.PeerReview{
		ID: uuid.New(), EvidenceID: oldest, ReviewerID: reviewerID,
		Verdict: evidence.VerdictApprove, CreatedAt: now,
	}))
	require.NoError(t, tx.Commit())

	items, err = evidenceStore.ReviewQueue(ctx, reviewerID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, newest, items[0].EvidenceID)

	// The owner never sees their own submissions.
	items, err = evidenceStore.ReviewQueue(ctx, ownerID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, own, items[0].EvidenceID)
}

func TestReviewQueueBoundedPage(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)
	ownerID := createTestPlayer(t, db, "owner")
	reviewerID := createTestPlayer(t, db, "reviewer")
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		createTestEvidence(t, db, ownerID, "serve", 7.0, now.Add(time.Duration(i)*time.Minute))
	}

	items, err := evidenceStore.ReviewQueue(ctx, reviewerID, 3)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestEscalateStale(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)
	ownerID := createTestPlayer(t, db, "owner")
	now := time.Now().UTC()

	stale := createTestEvidence(t, db, ownerID, "serve", 7.0, now.Add(-15*24*time.Hour))
	fresh := createTestEvidence(t, db, ownerID, "smash", 6.0, now.Add(-time.Hour))

	flagged, err := evidenceStore.EscalateStale(ctx, now.Add(-14*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), flagged)

	v, err := evidenceStore.GetVerification(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusFlagged, v.Status)

	v, err = evidenceStore.GetVerification(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPendingReview, v.Status)
}

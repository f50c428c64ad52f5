package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/evidence"
	"github.com/mhenrik/skillrank/internal/metrics"
	"github.com/mhenrik/skillrank/internal/middleware"
	"github.com/mhenrik/skillrank/internal/store"
)

var (
	ErrSelfReview       = errors.New("reviewers cannot review their own evidence")
	ErrDuplicateReview  = errors.New("reviewer already reviewed this evidence")
	ErrAlreadyFinalized = errors.New("verification is already finalized")
	ErrInvalidVerdict   = errors.New("invalid verdict")
	ErrNotModerator     = errors.New("moderator role required")
	ErrNotFlagged       = errors.New("verification is not flagged")
)

// ReviewPolicy is the quorum shape for peer review.
type ReviewPolicy struct {
	Quorum        int
	Supermajority float64
	PageSize      int
}

// needed is the vote count a side must reach for a supermajority decision.
func (p ReviewPolicy) needed() int {
	return int(math.Ceil(p.Supermajority * float64(p.Quorum)))
}

type ReviewService struct {
	db         *sqlx.DB
	evidences  *store.EvidenceStore
	techniques *store.TechniqueStore
	players    *store.PlayerStore
	policy     ReviewPolicy
}

func NewReviewService(db *sqlx.DB, evidences *store.EvidenceStore, techniques *store.TechniqueStore, players *store.PlayerStore, policy ReviewPolicy) *ReviewService {
	return &ReviewService{db: db, evidences: evidences, techniques: techniques, players: players, policy: policy}
}

// Queue lists the evidence the calling reviewer may vote on, oldest first.
func (s *ReviewService) Queue(ctx context.Context) ([]store.QueueItem, error) {
	reviewerID, ok := middleware.GetPlayerIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("player ID not found in the context")
	}
	return s.evidences.ReviewQueue(ctx, reviewerID, s.policy.PageSize)
}

type VerdictResult struct {
	Status       evidence.VerificationStatus `json:"status"`
	ApproveCount int                         `json:"approve_count"`
	RejectCount  int                         `json:"reject_count"`
}

// SubmitVerdict records one reviewer's verdict and advances the state
// machine when the vote is decisive. The whole thing runs in one
// transaction: if the decisive transition loses a race, the vote is rolled
// back with it and the caller gets ErrAlreadyFinalized.
func (s *ReviewService) SubmitVerdict(ctx context.Context, evidenceID uuid.UUID, verdict evidence.Verdict) (*VerdictResult, error) {
	reviewerID, ok := middleware.GetPlayerIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("player ID not found in the context")
	}
	if !verdict.Valid() {
		return nil, ErrInvalidVerdict
	}

	ev, err := s.evidences.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if ev.OwnerID == reviewerID {
		return nil, ErrSelfReview
	}

	verification, err := s.evidences.GetVerification(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if verification.Status != evidence.StatusPendingReview {
		return nil, ErrAlreadyFinalized
	}

	scores, err := s.evidences.GetEvidenceScores(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	review := &evidence.PeerReview{
		ID:         uuid.New(),
		EvidenceID: evidenceID,
		ReviewerID: reviewerID,
		Verdict:    verdict,
		CreatedAt:  now,
	}
	if err := s.evidences.CreatePeerReview(ctx, tx, review); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateReview
		}
		return nil, err
	}

	approve, reject, err := s.evidences.CountVerdicts(ctx, tx, evidenceID)
	if err != nil {
		return nil, err
	}

	next, decided := s.decide(verdict, approve, reject)

	var applied bool
	if decided {
		applied, err = s.evidences.TransitionStatus(ctx, tx, evidenceID, evidence.StatusPendingReview, next, approve, reject)
	} else {
		applied, err = s.evidences.UpdateTally(ctx, tx, evidenceID, approve, reject)
	}
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another reviewer finalized it between our read and the update.
		return nil, ErrAlreadyFinalized
	}

	if decided && next == evidence.StatusVerified {
		if err := applyVerifiedScores(ctx, tx, s.techniques, ev.OwnerID, scores, evidenceID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.Verdicts.WithLabelValues(string(verdict)).Inc()

	status := evidence.StatusPendingReview
	if decided {
		status = next
	}
	return &VerdictResult{Status: status, ApproveCount: approve, RejectCount: reject}, nil
}

// decide applies the quorum rule. A single flag short-circuits regardless
// of quorum; otherwise nothing moves until approve+reject reaches the
// quorum, and then only with a supermajority on one side.
func (s *ReviewService) decide(verdict evidence.Verdict, approve, reject int) (evidence.VerificationStatus, bool) {
	if verdict == evidence.VerdictFlag {
		return evidence.StatusFlagged, true
	}
	if approve+reject < s.policy.Quorum {
		return "", false
	}
	need := s.policy.needed()
	switch {
	case approve >= need:
		return evidence.StatusVerified, true
	case reject >= need:
		return evidence.StatusRejected, true
	}
	return "", false
}

// Adjudicate is the moderator override resolving flagged evidence.
func (s *ReviewService) Adjudicate(ctx context.Context, evidenceID uuid.UUID, approve bool) (*VerdictResult, error) {
	moderatorID, ok := middleware.GetPlayerIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("player ID not found in the context")
	}
	moderator, err := s.players.GetPlayer(ctx, moderatorID)
	if err != nil {
		return nil, err
	}
	if !moderator.IsModerator {
		return nil, ErrNotModerator
	}

	verification, err := s.evidences.GetVerification(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if verification.Status != evidence.StatusFlagged {
		return nil, ErrNotFlagged
	}

	next := evidence.StatusRejected
	if approve {
		next = evidence.StatusVerified
	}

	ev, err := s.evidences.GetEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	scores, err := s.evidences.GetEvidenceScores(ctx, evidenceID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	moved, err := s.evidences.TransitionStatus(ctx, tx, evidenceID, evidence.StatusFlagged, next, verification.ApproveCount, verification.RejectCount)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrAlreadyFinalized
	}

	if next == evidence.StatusVerified {
		if err := applyVerifiedScores(ctx, tx, s.techniques, ev.OwnerID, scores, evidenceID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &VerdictResult{Status: next, ApproveCount: verification.ApproveCount, RejectCount: verification.RejectCount}, nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/mhenrik/skillrank/internal/evidence"
)

// ErrDuplicate is returned when a unique constraint rejects an insert, e.g.
// a reviewer voting twice on the same evidence.
var ErrDuplicate = errors.New("duplicate row")

type EvidenceStore struct {
	db *sqlx.DB
}

const (
	createEvidenceQuery = `INSERT INTO evidence (id, owner_id, video_url, has_metadata, captured_at, device_id, tamper_detected, created_at)
		VALUES (:id, :owner_id, :video_url, :has_metadata, :captured_at, :device_id, :tamper_detected, :created_at)`
	createEvidenceScoresQuery = `INSERT INTO evidence_scores (evidence_id, technique, score)
		VALUES (:evidence_id, :technique, :score)`
	createVerificationQuery = `INSERT INTO verifications (evidence_id, score, status, has_metadata, recent_capture, device_attributed, approve_count, reject_count, created_at, updated_at)
		VALUES (:evidence_id, :score, :status, :has_metadata, :recent_capture, :device_attributed, :approve_count, :reject_count, :created_at, :updated_at)`
	createPeerReviewQuery = `INSERT INTO peer_reviews (id, evidence_id, reviewer_id, verdict, created_at)
		VALUES (:id, :evidence_id, :reviewer_id, :verdict, :created_at)`

	// The WHERE clause on the current status is what makes a transition a
	// single atomic check-and-update: the losing caller in a race sees
	// zero rows changed.
	transitionStatusQuery = `UPDATE verifications SET
		status = ?, approve_count = ?, reject_count = ?, updated_at = ?
		WHERE evidence_id = ? AND status = ?`
)

func NewEvidenceStore(db *sqlx.DB) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) CreateEvidence(ctx context.Context, tx *sqlx.Tx, ev *evidence.Evidence) error {
	_, err := tx.NamedExecContext(ctx, createEvidenceQuery, ev)
	return err
}

func (s *EvidenceStore) CreateEvidenceScores(ctx context.Context, tx *sqlx.Tx, scores []evidence.EvidenceScore) error {
	if len(scores) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createEvidenceScoresQuery, scores)
	return err
}

func (s *EvidenceStore) CreateVerification(ctx context.Context, tx *sqlx.Tx, v *evidence.Verification) error {
	_, err := tx.NamedExecContext(ctx, createVerificationQuery, v)
	return err
}

func (s *EvidenceStore) GetEvidence(ctx context.Context, id uuid.UUID) (*evidence.Evidence, error) {
	var ev evidence.Evidence
	err := s.db.GetContext(ctx, &ev, "SELECT * FROM evidence WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *EvidenceStore) GetEvidenceScores(ctx context.Context, evidenceID uuid.UUID) ([]evidence.EvidenceScore, error) {
	var scores []evidence.EvidenceScore
	err := s.db.SelectContext(ctx, &scores, "SELECT * FROM evidence_scores WHERE evidence_id = ? ORDER BY technique ASC", evidenceID)
	return scores, err
}

func (s *EvidenceStore) GetVerification(ctx context.Context, evidenceID uuid.UUID) (*evidence.Verification, error) {
	var v evidence.Verification
	err := s.db.GetContext(ctx, &v, "SELECT * FROM verifications WHERE evidence_id = ?", evidenceID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreatePeerReview inserts one verdict. The UNIQUE(reviewer_id, evidence_id)
// constraint turns a duplicate vote into ErrDuplicate instead of a second
// counted row.
func (s *EvidenceStore) CreatePeerReview(ctx context.Context, tx *sqlx.Tx, review *evidence.PeerReview) error {
	_, err := tx.NamedExecContext(ctx, createPeerReviewQuery, review)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return ErrDuplicate
	}
	return err
}

func (s *EvidenceStore) CountVerdicts(ctx context.Context, tx *sqlx.Tx, evidenceID uuid.UUID) (approve, reject int, err error) {
	rows, err := tx.QueryxContext(ctx, "SELECT verdict, COUNT(*) FROM peer_reviews WHERE evidence_id = ? GROUP BY verdict", evidenceID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var verdict evidence.Verdict
		var count int
		if err := rows.Scan(&verdict, &count); err != nil {
			return 0, 0, err
		}
		switch verdict {
		case evidence.VerdictApprove:
			approve = count
		case evidence.VerdictReject:
			reject = count
		}
	}
	return approve, reject, rows.Err()
}

// TransitionStatus moves a verification from one status to another as a
// single conditional update. Returns false when the row was not in the
// expected status, meaning another caller finalized it first.
func (s *EvidenceStore) TransitionStatus(ctx context.Context, tx *sqlx.Tx, evidenceID uuid.UUID, from, to evidence.VerificationStatus, approve, reject int) (bool, error) {
	if !evidence.CanTransition(from, to) {
		return false, errors.New("illegal status transition: " + string(from) + " -> " + string(to))
	}
	res, err := tx.ExecContext(ctx, transitionStatusQuery, to, approve, reject, time.Now().UTC(), evidenceID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateTally refreshes the vote counts of a still-pending verification.
// Returns false when the verification is no longer pending.
func (s *EvidenceStore) UpdateTally(ctx context.Context, tx *sqlx.Tx, evidenceID uuid.UUID, approve, reject int) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE verifications SET
		approve_count = ?, reject_count = ?, updated_at = ?
		WHERE evidence_id = ? AND status = ?`,
		approve, reject, time.Now().UTC(), evidenceID, evidence.StatusPendingReview)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// QueueItem is one entry of a reviewer's queue.
type QueueItem struct {
	EvidenceID        uuid.UUID  `db:"id" json:"evidence_id"`
	OwnerID           uuid.UUID  `db:"owner_id" json:"owner_id"`
	VideoURL          *string    `db:"video_url" json:"video_url,omitempty"`
	CapturedAt        *time.Time `db:"captured_at" json:"captured_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"submitted_at"`
	VerificationScore int        `db:"score" json:"verification_score"`
}

// ReviewQueue lists evidence awaiting review that the given reviewer is
// eligible for: pending, not their own, not yet reviewed by them, oldest
// first.
func (s *EvidenceStore) ReviewQueue(ctx context.Context, reviewerID uuid.UUID, limit int) ([]QueueItem, error) {
	var items []QueueItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT e.id, e.owner_id, e.video_url, e.captured_at, e.created_at, v.score
		FROM evidence e
		JOIN verifications v ON v.evidence_id = e.id
		WHERE v.status = ?
		  AND e.owner_id != ?
		  AND NOT EXISTS (
			SELECT 1 FROM peer_reviews pr
			WHERE pr.evidence_id = e.id AND pr.reviewer_id = ?
		  )
		ORDER BY e.created_at ASC
		LIMIT ?`,
		evidence.StatusPendingReview, reviewerID, reviewerID, limit)
	return items, err
}

// EscalateStale flags evidence stuck in pending review since before the
// cutoff, handing it to manual adjudication instead of leaving it in limbo.
func (s *EvidenceStore) EscalateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE verifications SET status = ?, updated_at = ?
		WHERE status = ?
		  AND evidence_id IN (SELECT id FROM evidence WHERE created_at < ?)`,
		evidence.StatusFlagged, time.Now().UTC(), evidence.StatusPendingReview, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

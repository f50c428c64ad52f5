package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/evidence"
	"github.com/mhenrik/skillrank/internal/metrics"
	"github.com/mhenrik/skillrank/internal/store"
	"github.com/mhenrik/skillrank/internal/trust"
)

var ErrNoScores = errors.New("evidence proposes no technique scores")

type SubmissionService struct {
	db         *sqlx.DB
	evidences  *store.EvidenceStore
	techniques *store.TechniqueStore
	engine     *trust.Engine
}

func NewSubmissionService(db *sqlx.DB, evidences *store.EvidenceStore, techniques *store.TechniqueStore, engine *trust.Engine) *SubmissionService {
	return &SubmissionService{db: db, evidences: evidences, techniques: techniques, engine: engine}
}

// CaptureMetadata is whatever the upload collaborator could read off the
// video. A nil value means no metadata at all.
type CaptureMetadata struct {
	CapturedAt *time.Time `json:"captured_at"`
	DeviceID   *string    `json:"device_id"`
}

type SubmissionInput struct {
	VideoURL *string            `json:"video_url"`
	Scores   map[string]float64 `json:"scores"`
	Metadata *CaptureMetadata   `json:"metadata"`
	// Set by the perception step when it detects metadata tampering.
	TamperDetected bool `json:"tamper_detected"`
}

type SubmissionResult struct {
	EvidenceID        uuid.UUID                   `json:"evidence_id"`
	VerificationScore int                         `json:"verification_score"`
	Status            evidence.VerificationStatus `json:"status"`
}

// Submit stores a new piece of evidence, runs the automated verification
// pass, and applies the proposed scores immediately when the evidence
// fast-tracks to verified.
func (s *SubmissionService) Submit(ctx context.Context, ownerID uuid.UUID, input SubmissionInput) (*SubmissionResult, error) {
	if len(input.Scores) == 0 {
		return nil, ErrNoScores
	}
	for technique, score := range input.Scores {
		if score < 0 || score > 10 {
			return nil, fmt.Errorf("score %.2f for technique %q is outside 0-10", score, technique)
		}
	}

	now := time.Now().UTC()
	ev := &evidence.Evidence{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		VideoURL:       input.VideoURL,
		TamperDetected: input.TamperDetected,
		CreatedAt:      now,
	}

	sig := trust.Signals{
		SubmittedAt:    now,
		TamperDetected: input.TamperDetected,
	}
	if input.Metadata != nil {
		sig.HasMetadata = true
		sig.CapturedAt = input.Metadata.CapturedAt
		sig.DeviceID = input.Metadata.DeviceID

		ev.HasMetadata = true
		ev.CapturedAt = input.Metadata.CapturedAt
		ev.DeviceID = input.Metadata.DeviceID
	}

	result := s.engine.Evaluate(sig)

	verification := &evidence.Verification{
		EvidenceID:       ev.ID,
		Score:            result.Score,
		Status:           result.Status,
		HasMetadata:      result.HasMetadata,
		RecentCapture:    result.RecentCapture,
		DeviceAttributed: result.DeviceAttributed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var scores []evidence.EvidenceScore
	for technique, score := range input.Scores {
		scores = append(scores, evidence.EvidenceScore{
			EvidenceID: ev.ID,
			Technique:  technique,
			Score:      score,
		})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.evidences.CreateEvidence(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err := s.evidences.CreateEvidenceScores(ctx, tx, scores); err != nil {
		return nil, err
	}
	if err := s.evidences.CreateVerification(ctx, tx, verification); err != nil {
		return nil, err
	}

	if result.Status == evidence.StatusVerified {
		if err := applyVerifiedScores(ctx, tx, s.techniques, ev.OwnerID, scores, ev.ID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.Verifications.WithLabelValues(string(result.Status)).Inc()

	return &SubmissionResult{
		EvidenceID:        ev.ID,
		VerificationScore: result.Score,
		Status:            result.Status,
	}, nil
}

// applyVerifiedScores promotes a verified evidence's proposed scores into
// the player's per-technique bests. The upsert only overwrites lower bests,
// so re-applying the same evidence is harmless.
func applyVerifiedScores(ctx context.Context, tx *sqlx.Tx, techniques *store.TechniqueStore, playerID uuid.UUID, scores []evidence.EvidenceScore, evidenceID uuid.UUID, at time.Time) error {
	for _, s := range scores {
		if err := techniques.UpsertBest(ctx, tx, playerID, s.Technique, s.Score, evidenceID, at); err != nil {
			return err
		}
	}
	return nil
}

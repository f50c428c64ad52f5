package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/evidence"
)

type TechniqueStore struct {
	db *sqlx.DB
}

// The conditional upsert keeps bests monotonically non-decreasing: an
// existing row only changes when the incoming score beats it.
const upsertBestQuery = `INSERT INTO technique_scores (id, player_id, technique, score, evidence_id, achieved_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(player_id, technique) DO UPDATE SET
		score = excluded.score,
		evidence_id = excluded.evidence_id,
		achieved_at = excluded.achieved_at
	WHERE excluded.score > technique_scores.score`

func NewTechniqueStore(db *sqlx.DB) *TechniqueStore {
	return &TechniqueStore{db: db}
}

// UpsertBest records a verified technique score if it beats the player's
// current best for that technique.
func (s *TechniqueStore) UpsertBest(ctx context.Context, tx *sqlx.Tx, playerID uuid.UUID, technique string, score float64, evidenceID uuid.UUID, achievedAt time.Time) error {
	_, err := tx.ExecContext(ctx, upsertBestQuery, uuid.New(), playerID, technique, score, evidenceID, achievedAt)
	return err
}

func (s *TechniqueStore) GetBestScores(ctx context.Context, playerID uuid.UUID) ([]evidence.TechniqueScore, error) {
	var scores []evidence.TechniqueScore
	err := s.db.SelectContext(ctx, &scores, "SELECT * FROM technique_scores WHERE player_id = ? ORDER BY technique ASC", playerID)
	return scores, err
}

// AllBest returns every technique best grouped by player, for the ranking
// job. Read inside the job's transaction so the whole snapshot is computed
// from one consistent state.
func (s *TechniqueStore) AllBest(ctx context.Context, tx *sqlx.Tx) ([]evidence.TechniqueScore, error) {
	var scores []evidence.TechniqueScore
	err := tx.SelectContext(ctx, &scores, "SELECT * FROM technique_scores ORDER BY player_id ASC, technique ASC")
	return scores, err
}

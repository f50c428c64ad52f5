package store

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/player"
	"github.com/mhenrik/skillrank/internal/rating"
)

type PlayerStore struct {
	db *sqlx.DB
}

const (
	getPlayerQuery           = "SELECT * FROM players WHERE id = ?"
	getPlayerByProviderQuery = `
        SELECT * FROM players
        WHERE provider = ?
        AND provider_id = ?
    `
	createPlayerQuery = `
		INSERT INTO players (id, email, username, country, tier, is_moderator, provider, provider_id, avatar_url) VALUES
		(:id, :email, :username, :country, :tier, :is_moderator, :provider, :provider_id, :avatar_url)
	`
	updateProfileQuery = `
		UPDATE players SET
		username = :username,
		country = :country
		WHERE id = :id
	`
	updateRankingQuery = `
		UPDATE players SET
		composite_score = :composite_score,
		tier = :tier,
		effective_score = :effective_score,
		ranked_at = :ranked_at
		WHERE id = :id
	`
)

func NewPlayerStore(db *sqlx.DB) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) GetPlayer(ctx context.Context, id interface{}) (*player.Player, error) {
	var p player.Player
	err := s.db.GetContext(ctx, &p, getPlayerQuery, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlayerStore) GetPlayerByProvider(ctx context.Context, provider string, providerID string) (*player.Player, error) {
	var p player.Player
	err := s.db.GetContext(ctx, &p, getPlayerByProviderQuery, provider, providerID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, p *player.Player) error {
	_, err := s.db.NamedExecContext(ctx, createPlayerQuery, p)
	return err
}

func (s *PlayerStore) UpdateProfile(ctx context.Context, p *player.Player) error {
	_, err := s.db.NamedExecContext(ctx, updateProfileQuery, p)
	return err
}

// UpdateRanking writes one staged (score, tier) pair inside the ranking
// job's transaction.
func (s *PlayerStore) UpdateRanking(ctx context.Context, tx *sqlx.Tx, p *player.Player) error {
	_, err := tx.NamedExecContext(ctx, updateRankingQuery, p)
	return err
}

// LeaderboardEntry is one row of the committed ranking snapshot. Rank is
// filled in by the service from the read order.
type LeaderboardEntry struct {
	Rank           int         `db:"-" json:"rank"`
	PlayerID       string      `db:"id" json:"player_id"`
	Username       string      `db:"username" json:"username"`
	Country        *string     `db:"country" json:"country,omitempty"`
	CompositeScore float64     `db:"composite_score" json:"composite_score"`
	Tier           rating.Tier `db:"tier" json:"tier"`
	EffectiveScore *float64    `db:"effective_score" json:"effective_score,omitempty"`
}

func (s *PlayerStore) GetLeaderboard(ctx context.Context, country *string, limit int) ([]LeaderboardEntry, error) {
	var entries []LeaderboardEntry
	query := `SELECT id, username, country, composite_score, tier, effective_score FROM players
		WHERE composite_score IS NOT NULL`
	args := []interface{}{}
	if country != nil {
		query += " AND country = ?"
		args = append(args, *country)
	}
	query += " ORDER BY composite_score DESC, username ASC LIMIT ?"
	args = append(args, limit)

	err := s.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

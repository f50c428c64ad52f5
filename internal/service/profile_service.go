package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
	"github.com/mhenrik/skillrank/internal/middleware"
	"github.com/mhenrik/skillrank/internal/player"
	"github.com/mhenrik/skillrank/internal/rating"
	"github.com/mhenrik/skillrank/internal/store"
	"github.com/mhenrik/skillrank/internal/utils"
)

type ProfileService struct {
	db    *sqlx.DB
	store *store.PlayerStore
}

func NewProfileService(db *sqlx.DB, store *store.PlayerStore) *ProfileService {
	return &ProfileService{db: db, store: store}
}

// FindOrCreatePlayerByProvider backs the OAuth callback. New players start
// unranked with no composite score.
func (s *ProfileService) FindOrCreatePlayerByProvider(ctx context.Context, gothUser goth.User) (*player.Player, error) {
	p, err := s.store.GetPlayerByProvider(ctx, gothUser.Provider, gothUser.UserID)
	if err == nil {
		return p, nil
	}

	if err == sql.ErrNoRows {
		newPlayer := &player.Player{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   gothUser.Name,
			Tier:       rating.TierUnranked,
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  &gothUser.AvatarURL,
		}
		err := s.store.CreatePlayer(ctx, newPlayer)
		return newPlayer, err
	}

	return nil, err
}

func (s *ProfileService) EnsureGuestPlayer(ctx context.Context) (*player.Player, error) {
	guestID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	p, err := s.store.GetPlayer(ctx, guestID)
	if err == nil {
		return p, nil
	}

	if err == sql.ErrNoRows {
		guest := &player.Player{
			ID:       guestID,
			Email:    "guest@skillrank.app",
			Username: "Guest Player",
			Tier:     rating.TierUnranked,
		}
		err := s.store.CreatePlayer(ctx, guest)
		return guest, err
	}
	return nil, err
}

func (s *ProfileService) GetPlayer(ctx context.Context, id uuid.UUID) (*player.Player, error) {
	return s.store.GetPlayer(ctx, id)
}

// UpdateProfile applies self-service edits to non-score fields only.
func (s *ProfileService) UpdateProfile(ctx context.Context, username, country string) (*player.Player, error) {
	playerID, ok := middleware.GetPlayerIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("player ID not found in the context")
	}

	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if username != "" {
		p.Username = username
	}
	if c := utils.StringOrNil(country); c != nil {
		p.Country = c
	}

	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Leaderboard reads the committed ranking snapshot, optionally filtered to
// one country, and assigns rank positions from the read order.
func (s *ProfileService) Leaderboard(ctx context.Context, country string, limit int) ([]store.LeaderboardEntry, error) {
	entries, err := s.store.GetLeaderboard(ctx, utils.StringOrNil(country), limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

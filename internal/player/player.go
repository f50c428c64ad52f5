package player

import (
	"time"

	"github.com/google/uuid"
	"github.com/mhenrik/skillrank/internal/rating"
)

type ContextKey string

const PlayerKey ContextKey = "player"

type Player struct {
	ID       uuid.UUID `db:"id"`
	Email    string    `db:"email"`
	Username string    `db:"username"`
	Country  *string   `db:"country"`

	// Nil until the player has at least one verified technique.
	CompositeScore *float64    `db:"composite_score"`
	Tier           rating.Tier `db:"tier"`
	// Seeding score; decays below the composite while the player is idle.
	EffectiveScore *float64 `db:"effective_score"`

	IsModerator bool       `db:"is_moderator"`
	RankedAt    *time.Time `db:"ranked_at"`

	CreatedAt  time.Time `db:"created_at"`
	Provider   *string   `db:"provider"`
	ProviderID *string   `db:"provider_id"`
	AvatarURL  *string   `db:"avatar_url"`
}

package middleware

import (
	"context"
	"net/http"
	"os"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
	"github.com/mhenrik/skillrank/internal/httputil"
	"github.com/mhenrik/skillrank/internal/player"
	"github.com/mhenrik/skillrank/internal/store"
)

type ContextKey string

const PlayerIDKey ContextKey = "playerID"

func InitAuth() {
	discordKey := os.Getenv("DISCORD_KEY")
	discordSecret := os.Getenv("DISCORD_SECRET")
	discordCallbackURL := os.Getenv("DISCORD_CALLBACK_URL")

	googleKey := os.Getenv("GOOGLE_KEY")
	googleSecret := os.Getenv("GOOGLE_SECRET")
	googleCallbackURL := os.Getenv("GOOGLE_CALLBACK_URL")

	goth.UseProviders(
		discord.New(discordKey, discordSecret, discordCallbackURL, discord.ScopeIdentify, discord.ScopeEmail),
		google.New(googleKey, googleSecret, googleCallbackURL, "email", "profile"),
	)
}

func RequireAuth(sessionManager *scs.SessionManager, playerStore *store.PlayerStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerIDStr := sessionManager.GetString(r.Context(), "playerID")
			if playerIDStr == "" {
				httputil.Unauthorized(w, "Login required")
				return
			}

			playerID, err := uuid.Parse(playerIDStr)
			if err != nil {
				sessionManager.Remove(r.Context(), "playerID")
				httputil.Unauthorized(w, "Login required")
				return
			}

			ctx := context.WithValue(r.Context(), PlayerIDKey, playerID)

			// Add the player to context so that we can easily get it whenever we want
			p, err := playerStore.GetPlayer(ctx, playerID)
			if err == nil {
				ctx = context.WithValue(ctx, player.PlayerKey, p)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetPlayerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(PlayerIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func GetAuthenticatedPlayer(ctx context.Context) *player.Player {
	val := ctx.Value(player.PlayerKey)
	if val == nil {
		return nil
	}
	p, ok := val.(*player.Player)
	if !ok {
		return nil
	}
	return p
}

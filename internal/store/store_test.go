package store

import (
	"context"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/evidence"
	"github.com/mhenrik/skillrank/internal/player"
	"github.com/mhenrik/skillrank/internal/rating"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

func createTestPlayer(t *testing.T, db *sqlx.DB, username string) uuid.UUID {
	t.Helper()

	p := &player.Player{
		ID:       uuid.New(),
		Email:    username + "@skillrank.test",
		Username: username,
		Tier:     rating.TierUnranked,
	}
	require.NoError(t, NewPlayerStore(db).CreatePlayer(context.Background(), p))
	return p.ID
}

// createTestEvidence inserts a pending evidence with one proposed score.
func createTestEvidence(t *testing.T, db *sqlx.DB, ownerID uuid.UUID, technique string, score float64, createdAt time.Time) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	evidenceStore := NewEvidenceStore(db)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	ev := &evidence.Evidence{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		CreatedAt: createdAt,
	}
	require.NoError(t, evidenceStore.CreateEvidence(ctx, tx, ev))
	require.NoError(t, evidenceStore.CreateEvidenceScores(ctx, tx, []evidence.EvidenceScore{
		{EvidenceID: ev.ID, Technique: technique, Score: score},
	}))
	require.NoError(t, evidenceStore.CreateVerification(ctx, tx, &evidence.Verification{
		EvidenceID: ev.ID,
		Status:     evidence.StatusPendingReview,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}))
	require.NoError(t, tx.Commit())

	return ev.ID
}

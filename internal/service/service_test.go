package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/middleware"
	"github.com/mhenrik/skillrank/internal/player"
	"github.com/mhenrik/skillrank/internal/rating"
	"github.com/mhenrik/skillrank/internal/store"
	"github.com/mhenrik/skillrank/internal/trust"
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

func testTrustPolicy() trust.Policy {
	return trust.Policy{
		BaseScore:       40,
		RecencyCredit:   30,
		DeviceCredit:    30,
		VerifyThreshold: 60,
		TrustWindow:     72 * time.Hour,
	}
}

func testReviewPolicy() ReviewPolicy {
	return ReviewPolicy{Quorum: 3, Supermajority: 2.0 / 3.0, PageSize: 20}
}

func testDecayPolicy() rating.DecayPolicy {
	return rating.DecayPolicy{Grace: 30 * 24 * time.Hour, DailyFactor: 0.995}
}

// testEnv wires every service over one database, the way routes.go does.
type testEnv struct {
	db          *sqlx.DB
	players     *store.PlayerStore
	evidences   *store.EvidenceStore
	techniques  *store.TechniqueStore
	locks       *store.JobLockStore
	submission  *SubmissionService
	review      *ReviewService
	ranking     *RankingService
	maintenance *MaintenanceService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	players := store.NewPlayerStore(db)
	evidences := store.NewEvidenceStore(db)
	techniques := store.NewTechniqueStore(db)
	locks := store.NewJobLockStore(db)

	return &testEnv{
		db:          db,
		players:     players,
		evidences:   evidences,
		techniques:  techniques,
		locks:       locks,
		submission:  NewSubmissionService(db, evidences, techniques, trust.NewEngine(testTrustPolicy())),
		review:      NewReviewService(db, evidences, techniques, players, testReviewPolicy()),
		ranking:     NewRankingService(db, players, techniques, locks, 5*time.Minute, testDecayPolicy()),
		maintenance: NewMaintenanceService(evidences, locks, 5*time.Minute, 14*24*time.Hour),
	}
}

func (e *testEnv) createPlayer(t *testing.T, username string, moderator bool) uuid.UUID {
	t.Helper()
	p := &player.Player{
		ID:          uuid.New(),
		Email:       username + "@skillrank.test",
		Username:    username,
		Tier:        rating.TierUnranked,
		IsModerator: moderator,
	}
	require.NoError(t, e.players.CreatePlayer(context.Background(), p))
	return p.ID
}

func asPlayer(id uuid.UUID) context.Context {
	return context.WithValue(context.Background(), middleware.PlayerIDKey, id)
}

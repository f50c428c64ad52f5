package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mhenrik/skillrank/internal/metrics"
	"github.com/mhenrik/skillrank/internal/player"
	"github.com/mhenrik/skillrank/internal/rating"
	"github.com/mhenrik/skillrank/internal/store"
)

const RankingJobName = "ranking_computation"

type RankingService struct {
	db         *sqlx.DB
	players    *store.PlayerStore
	techniques *store.TechniqueStore
	locks      *store.JobLockStore
	lockTTL    time.Duration
	decay      rating.DecayPolicy
}

func NewRankingService(db *sqlx.DB, players *store.PlayerStore, techniques *store.TechniqueStore, locks *store.JobLockStore, lockTTL time.Duration, decay rating.DecayPolicy) *RankingService {
	return &RankingService{db: db, players: players, techniques: techniques, locks: locks, lockTTL: lockTTL, decay: decay}
}

type RankingRunReport struct {
	Skipped bool `json:"skipped"`
	Players int  `json:"players"`
}

// RunRankingJob recomputes every eligible player's composite score and tier
// and commits the whole snapshot atomically. Concurrent scheduler fires are
// serialized by the job lock; losing the lock is a normal skip, not an
// error. The lock is released on every exit path, so a failed run never
// wedges future cycles.
func (s *RankingService) RunRankingJob(ctx context.Context) (report RankingRunReport, err error) {
	acquired, err := s.locks.Acquire(ctx, RankingJobName, s.lockTTL)
	if err != nil {
		metrics.JobRuns.WithLabelValues(RankingJobName, "error").Inc()
		return report, err
	}
	if !acquired {
		slog.Info("ranking job already running, skipping cycle", "job", RankingJobName)
		metrics.JobRuns.WithLabelValues(RankingJobName, "skipped").Inc()
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, RankingJobName); releaseErr != nil {
			slog.Error("failed to release job lock", "job", RankingJobName, "error", releaseErr)
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.JobRuns.WithLabelValues(RankingJobName, outcome).Inc()
	}()

	report.Players, err = s.recompute(ctx)
	if err != nil {
		slog.Error("ranking job failed", "job", RankingJobName, "error", err)
		return report, err
	}

	slog.Info("ranking job finished", "job", RankingJobName, "players", report.Players)
	return report, nil
}

// recompute stages every player's (score, tier) pair and commits them as
// one snapshot. A failure anywhere rolls the whole batch back, so no player
// is ever left with a tier inconsistent with their score.
func (s *RankingService) recompute(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	bests, err := s.techniques.AllBest(ctx, tx)
	if err != nil {
		return 0, err
	}

	count := 0
	i := 0
	for i < len(bests) {
		playerID := bests[i].PlayerID
		var scores []float64
		lastAchieved := bests[i].AchievedAt
		for i < len(bests) && bests[i].PlayerID == playerID {
			scores = append(scores, bests[i].Score)
			if bests[i].AchievedAt.After(lastAchieved) {
				lastAchieved = bests[i].AchievedAt
			}
			i++
		}

		composite := rating.Composite(scores)
		tier := rating.Classify(composite)
		effective := rating.EffectiveScore(*composite, lastAchieved, now, s.decay)

		p := &player.Player{
			ID:             playerID,
			CompositeScore: composite,
			Tier:           tier,
			EffectiveScore: &effective,
			RankedAt:       &now,
		}
		if err := s.players.UpdateRanking(ctx, tx, p); err != nil {
			return 0, err
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

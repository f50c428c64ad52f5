package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/mhenrik/skillrank/internal/metrics"
	"github.com/mhenrik/skillrank/internal/store"
)

const MaintenanceJobName = "maintenance_sweep"

type MaintenanceService struct {
	evidences        *store.EvidenceStore
	locks            *store.JobLockStore
	lockTTL          time.Duration
	staleReviewAfter time.Duration
}

func NewMaintenanceService(evidences *store.EvidenceStore, locks *store.JobLockStore, lockTTL, staleReviewAfter time.Duration) *MaintenanceService {
	return &MaintenanceService{evidences: evidences, locks: locks, lockTTL: lockTTL, staleReviewAfter: staleReviewAfter}
}

type MaintenanceRunReport struct {
	Skipped      bool  `json:"skipped"`
	LocksSwept   int64 `json:"locks_swept"`
	StaleFlagged int64 `json:"stale_flagged"`
}

// RunMaintenanceJob sweeps expired job locks and escalates evidence stuck
// in peer review to flagged so a human picks it up. Serialized by its own
// job lock, same contract as the ranking job.
func (s *MaintenanceService) RunMaintenanceJob(ctx context.Context) (report MaintenanceRunReport, err error) {
	acquired, err := s.locks.Acquire(ctx, MaintenanceJobName, s.lockTTL)
	if err != nil {
		metrics.JobRuns.WithLabelValues(MaintenanceJobName, "error").Inc()
		return report, err
	}
	if !acquired {
		slog.Info("maintenance job already running, skipping cycle", "job", MaintenanceJobName)
		metrics.JobRuns.WithLabelValues(MaintenanceJobName, "skipped").Inc()
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, MaintenanceJobName); releaseErr != nil {
			slog.Error("failed to release job lock", "job", MaintenanceJobName, "error", releaseErr)
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		metrics.JobRuns.WithLabelValues(MaintenanceJobName, outcome).Inc()
	}()

	report.LocksSwept, err = s.locks.SweepExpired(ctx)
	if err != nil {
		slog.Error("maintenance job failed", "job", MaintenanceJobName, "stage", "lock_sweep", "error", err)
		return report, err
	}

	cutoff := time.Now().UTC().Add(-s.staleReviewAfter)
	report.StaleFlagged, err = s.evidences.EscalateStale(ctx, cutoff)
	if err != nil {
		slog.Error("maintenance job failed", "job", MaintenanceJobName, "stage", "stale_escalation", "error", err)
		return report, err
	}

	slog.Info("maintenance job finished", "job", MaintenanceJobName,
		"locks_swept", report.LocksSwept, "stale_flagged", report.StaleFlagged)
	return report, nil
}

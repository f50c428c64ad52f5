package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// JobLockStore is the mutual-exclusion primitive serializing recurring jobs
// across scheduler invocations and instances. A live row per job name is
// the sole truth of "job running"; correctness rests on the TTL being a
// safe upper bound on job runtime.
type JobLockStore struct {
	db *sqlx.DB
}

type JobLock struct {
	JobName   string    `db:"job_name"`
	LockedAt  time.Time `db:"locked_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func NewJobLockStore(db *sqlx.DB) *JobLockStore {
	return &JobLockStore{db: db}
}

// Acquire reclaims any expired lock row for the job, then attempts an
// atomic insert-if-absent. False means another holder is live; callers
// treat that as "skip this cycle", not an error.
func (s *JobLockStore) Acquire(ctx context.Context, jobName string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, "DELETE FROM job_locks WHERE job_name = ? AND expires_at <= ?", jobName, now)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_locks (job_name, locked_at, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(job_name) DO NOTHING`,
		jobName, now, now.Add(ttl))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release deletes the lock row unconditionally. A row already swept after
// expiry is not an error.
func (s *JobLockStore) Release(ctx context.Context, jobName string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM job_locks WHERE job_name = ?", jobName)
	return err
}

// SweepExpired purges every expired lock row, regardless of job name.
func (s *JobLockStore) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM job_locks WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package storage

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RunLocker is a TTL lease keyed by scorer name, backed by the job_locks
// table. An expired lease is stolen by the next acquirer; a live lease held
// by someone else makes Acquire return false.
type RunLocker struct {
	storage *SQLiteStorage
	owner   string
}

// NewRunLocker creates a run locker owned by this process.
func NewRunLocker(storage *SQLiteStorage) *RunLocker {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &RunLocker{
		storage: storage,
		owner:   fmt.Sprintf("%s/%d", host, os.Getpid()),
	}
}

// Owner returns the lease owner string written into the lock table.
func (l *RunLocker) Owner() string {
	return l.owner
}

// Acquire takes the lease for key if it is free, already ours, or expired.
// The insert-or-steal is a single statement so two processes cannot both win.
func (l *RunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(key, "key"); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	res, err := l.storage.db.ExecContext(ctx, `
		INSERT INTO job_locks (key, owner, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			owner = excluded.owner,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE job_locks.expires_at <= excluded.acquired_at
		   OR job_locks.owner = excluded.owner`,
		key, l.owner, now, now.Add(ttl))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check lock result: %w", err)
	}
	return affected == 1, nil
}

// Release frees the lease if we still own it. Releasing a lock someone else
// has since stolen is a no-op.
func (l *RunLocker) Release(ctx context.Context, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	_, err := l.storage.db.ExecContext(ctx,
		`DELETE FROM job_locks WHERE key = ? AND owner = ?`, key, l.owner)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

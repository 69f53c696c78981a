// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the named run-lock used to keep at most
// one scheduler batch in flight across processes.
//
// The lock is a single row keyed by lock name, manipulated only through
// conditional writes so correctness does not depend on driver-specific row
// locking (SQLite has no SELECT ... FOR UPDATE):
//
//   - No row            -> INSERT (locked_at=now, locked_by=holder); a unique
//     violation means another acquirer won the race.
//   - Live row, other   -> failure, no mutation (lock contention; a valid
//     "someone else is running" signal, not an error).
//   - Row older than the staleness threshold -> stale-lock recovery: a
//     conditional UPDATE takes over the abandoned row, guarded by the old
//     (locked_at, locked_by) pair so two recoverers cannot both succeed.
//
// Release deletes the row only when still held by the releasing holder, so a
// slow or late release cannot clobber a newer holder's lock.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// AcquireRunLock attempts to take the named lock for holderID at instant now.
// It returns true when the lock was obtained (fresh, or recovered from a
// stale row), and false when a live lock is held by someone else. Database
// errors are returned as-is.
func AcquireRunLock(ctx context.Context, db *gorm.DB, name, holderID string, now time.Time, staleAfter time.Duration) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		err := db.WithContext(ctx).Create(&domain.RunLock{
			Name:     name,
			LockedAt: now.UTC(),
			LockedBy: holderID,
		}).Error
		if err == nil {
			return true, nil
		}
		if !isUniqueViolation(err) {
			return false, err
		}

		// A row exists. Check its age for stale-lock recovery.
		var row domain.RunLock
		if err := db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Holder released between our INSERT and read; retry the
				// INSERT once, then treat a repeat miss as contention.
				continue
			}
			return false, err
		}
		if now.UTC().Sub(row.LockedAt) < staleAfter {
			return false, nil
		}

		// Stale lock: take over, guarded by the old row values so two
		// concurrent recoverers cannot both win.
		res := db.WithContext(ctx).
			Model(&domain.RunLock{}).
			Where("name = ? AND locked_by = ? AND locked_at = ?", name, row.LockedBy, row.LockedAt).
			Updates(map[string]any{"locked_at": now.UTC(), "locked_by": holderID})
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected == 1, nil
	}
	return false, nil
}

// ReleaseRunLock deletes the named lock row if (and only if) it is still
// held by holderID. Releasing a lock that was already taken over is a no-op,
// not an error.
func ReleaseRunLock(ctx context.Context, db *gorm.DB, name, holderID string) error {
	return db.WithContext(ctx).
		Where("name = ? AND locked_by = ?", name, holderID).
		Delete(&domain.RunLock{}).Error
}

// RunLockHolder returns the current lock row for name, or ErrNotFound when
// the lock is free. Used by diagnostics and tests.
func RunLockHolder(ctx context.Context, db *gorm.DB, name string) (*domain.RunLock, error) {
	var row domain.RunLock
	if err := db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// isUniqueViolation reports whether err is a primary-key/unique-index
// violation. glebarez/sqlite often returns plain-text errors for these.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "primary key constraint")
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ScheduledPost model, including the claim semantics the scheduler relies on.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Claim semantics:
//   - A post is "due" when scheduled_at <= now AND in_progress = false.
//   - ClaimPost flips in_progress with a conditional single-row UPDATE
//     (WHERE in_progress = false), so two concurrent claim attempts on the
//     same id can never both succeed: the flag acts as a single-writer gate.
//   - ReleasePost is the inverse and is used only when the fan-out failed to
//     start; after a completed run the post is deleted instead.
//
// Error semantics:
//   - When a post is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - ClaimPost returns ErrAlreadyClaimed when the row exists but the claim
//     flag was already set by another runner.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrAlreadyClaimed is returned by ClaimPost when the post exists but its
// claim flag is already set, meaning another scheduler pass owns it.
var ErrAlreadyClaimed = errors.New("scheduled post already claimed")

// CreateScheduledPost inserts a new unclaimed ScheduledPost row. The post
// ID is a randomly generated UUID (string), ScheduledAt is normalized to
// UTC, and the claim flag starts false.
//
// On success, it returns the persisted post. On failure, it returns a DB error.
func CreateScheduledPost(ctx context.Context, db *gorm.DB, accountIDs []string, caption, mediaURL, storageID string, kind domain.MediaKind, scheduledAt time.Time, username string) (*domain.ScheduledPost, error) {
	p := &domain.ScheduledPost{
		ID:          uuid.NewString(),
		AccountIDs:  domain.JoinIDList(accountIDs),
		Caption:     caption,
		MediaURL:    mediaURL,
		StorageID:   storageID,
		MediaKind:   kind,
		ScheduledAt: scheduledAt.UTC(),
		Username:    username,
		InProgress:  false,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// ListDuePosts returns every unclaimed post whose scheduled time has passed,
// ordered by scheduled time ascending (earliest first). The ordering is a
// fairness guarantee for multi-post passes, not a convenience.
func ListDuePosts(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.ScheduledPost, error) {
	var out []domain.ScheduledPost
	err := db.WithContext(ctx).
		Where("scheduled_at <= ? AND in_progress = ?", now.UTC(), false).
		Order("scheduled_at asc").
		Find(&out).Error
	return out, err
}

// ListScheduledPosts returns all pending posts (claimed or not), optionally
// scoped to one username ("" means all users), ordered by scheduled time
// ascending. Used by the read-only listing page.
func ListScheduledPosts(ctx context.Context, db *gorm.DB, username string) ([]domain.ScheduledPost, error) {
	q := db.WithContext(ctx).Model(&domain.ScheduledPost{})
	if username != "" {
		q = q.Where("username = ?", username)
	}
	var out []domain.ScheduledPost
	err := q.Order("scheduled_at asc").Find(&out).Error
	return out, err
}

// GetScheduledPost returns one scheduled post by ID, or ErrNotFound.
func GetScheduledPost(ctx context.Context, db *gorm.DB, id string) (*domain.ScheduledPost, error) {
	var p domain.ScheduledPost
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ClaimPost atomically sets the claim flag on an unclaimed post. The UPDATE
// is conditional on in_progress = false, so under concurrent callers exactly
// one observes success; the loser gets ErrAlreadyClaimed (or ErrNotFound if
// the row was already processed and deleted).
func ClaimPost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ScheduledPost{}).
		Where("id = ? AND in_progress = ?", id, false).
		Update("in_progress", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&domain.ScheduledPost{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrAlreadyClaimed
	}
	return nil
}

// ReleasePost clears the claim flag so the post becomes due again on the
// next scheduler pass. Only meaningful for a post whose fan-out never
// started; a completed run deletes the row instead.
func ReleasePost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.ScheduledPost{}).
		Where("id = ?", id).
		Update("in_progress", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePost removes the scheduled post permanently. This is the only
// terminal transition and is executed after one full fan-out pass,
// regardless of the per-account outcome mix.
func DeletePost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ScheduledPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

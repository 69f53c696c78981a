// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only audit log of completed
// fan-out runs and its paginated listing queries.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// AppendPostLog writes one audit row summarizing a completed fan-out run.
// Exactly one row is expected per run; the caller guarantees the run has
// produced an outcome for every destination account before appending.
func AppendPostLog(ctx context.Context, db *gorm.DB, username string, accountIDs []string, caption string, kind domain.MediaKind, results []string) (*domain.PostLog, error) {
	entry := &domain.PostLog{
		ID:         uuid.NewString(),
		Username:   username,
		AccountIDs: domain.JoinIDList(accountIDs),
		Caption:    caption,
		MediaKind:  kind,
		Results:    strings.Join(results, "\n"),
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// CountPostLogs returns the total number of audit rows, optionally scoped
// to one username ("" means all users). Used for pagination metadata.
func CountPostLogs(ctx context.Context, db *gorm.DB, username string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.PostLog{})
	if username != "" {
		q = q.Where("username = ?", username)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListPostLogsPage returns a page of audit rows ordered newest first,
// optionally scoped to one username. The caller computes offset and limit.
func ListPostLogsPage(ctx context.Context, db *gorm.DB, username string, offset, limit int) ([]domain.PostLog, error) {
	q := db.WithContext(ctx).Model(&domain.PostLog{})
	if username != "" {
		q = q.Where("username = ?", username)
	}
	var out []domain.PostLog
	err := q.Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the operator session store used by the
// token-based authentication layer.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// CreateSession inserts a session row for username with the given opaque
// token, valid until expiresAt.
func CreateSession(ctx context.Context, db *gorm.DB, username, token string, expiresAt time.Time) (*domain.Session, error) {
	s := &domain.Session{
		ID:        uuid.NewString(),
		Username:  username,
		Token:     token,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSessionByToken fetches the session row for token, or ErrNotFound.
// Expiry is not evaluated here; the auth service decides validity so the
// check can use an injected clock.
func GetSessionByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Session, error) {
	var s domain.Session
	if err := db.WithContext(ctx).Where("token = ?", token).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes the session row for token. Deleting an unknown
// token is a no-op.
func DeleteSession(ctx context.Context, db *gorm.DB, token string) error {
	return db.WithContext(ctx).Where("token = ?", token).Delete(&domain.Session{}).Error
}

// PurgeExpiredSessions removes every session whose expiry is at or before
// now, returning the number of rows deleted.
func PurgeExpiredSessions(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}

// Package services: operator sessions
//
// Token-based session management for the small, configured set of operator
// accounts. Login verifies credentials and mints an opaque token persisted
// with a TTL; Validate checks a presented token and purges it when expired.
package services

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/repo"
)

// SessionRepo defines the repository contract required by Auth.
type SessionRepo interface {
	Create(ctx context.Context, db *gorm.DB, username, token string, expiresAt time.Time) (*domain.Session, error)
	GetByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Session, error)
	Delete(ctx context.Context, db *gorm.DB, token string) error
	PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// Auth provides login, token validation, and logout for operators.
type Auth struct {
	DB   *gorm.DB
	Repo SessionRepo

	// Credentials maps operator username to password. Small and static:
	// loaded from configuration at startup.
	Credentials map[string]string
	// TTL is the session lifetime.
	TTL time.Duration

	// now is an injectable clock.
	now func() time.Time
}

// NewAuth constructs an Auth service with the given operator credentials
// and session TTL (default 60 minutes).
func NewAuth(db *gorm.DB, credentials map[string]string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &Auth{
		DB:          db,
		Repo:        sessionRepoShim{},
		Credentials: credentials,
		TTL:         ttl,
		now:         time.Now,
	}
}

// Login verifies the credentials and returns a fresh session token.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (a *Auth) Login(ctx context.Context, username, password string) (string, error) {
	want, ok := a.Credentials[username]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		return "", ErrInvalidCredentials
	}

	now := a.now().UTC()
	// Opportunistic cleanup keeps the table from accumulating dead rows.
	if n, err := a.Repo.PurgeExpired(ctx, a.DB, now); err != nil {
		log.Warn().Err(err).Msg("expired session purge failed")
	} else if n > 0 {
		log.Debug().Int64("purged", n).Msg("expired sessions removed")
	}

	token := uuid.NewString()
	if _, err := a.Repo.Create(ctx, a.DB, username, token, now.Add(a.TTL)); err != nil {
		return "", err
	}
	return token, nil
}

// Validate returns the username owning token when the session is live.
// Expired sessions are deleted on sight and reported as ErrSessionInvalid.
func (a *Auth) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionInvalid
	}
	s, err := a.Repo.GetByToken(ctx, a.DB, token)
	if err != nil {
		if err == repo.ErrNotFound {
			return "", ErrSessionInvalid
		}
		return "", err
	}
	if s.Expired(a.now().UTC()) {
		if derr := a.Repo.Delete(ctx, a.DB, token); derr != nil {
			log.Warn().Err(derr).Msg("expired session delete failed")
		}
		return "", ErrSessionInvalid
	}
	return s.Username, nil
}

// Logout deletes the session for token. Unknown tokens are a no-op.
func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.Repo.Delete(ctx, a.DB, token)
}

// sessionRepoShim adapts the repo free functions to the SessionRepo interface.
type sessionRepoShim struct{}

func (sessionRepoShim) Create(ctx context.Context, db *gorm.DB, username, token string, expiresAt time.Time) (*domain.Session, error) {
	return repo.CreateSession(ctx, db, username, token, expiresAt)
}

func (sessionRepoShim) GetByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Session, error) {
	return repo.GetSessionByToken(ctx, db, token)
}

func (sessionRepoShim) Delete(ctx context.Context, db *gorm.DB, token string) error {
	return repo.DeleteSession(ctx, db, token)
}

func (sessionRepoShim) PurgeExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return repo.PurgeExpiredSessions(ctx, db, now)
}

package domain

import "time"

// Session represents an authenticated operator session, keyed by an opaque
// bearer token. Rows are created at login, validated on each request, and
// deleted at logout; expired rows are purged opportunistically.
type Session struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Username  string    `gorm:"type:varchar(64);not null;index"`
	Token     string    `gorm:"type:TEXT NOT NULL;uniqueIndex"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Session) TableName() string { return "sessions" }

// Expired reports whether the session is past its expiry at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Package domain defines the persistence models for scheduled posts, audit
// logs, account groups, and the scheduler run lock. These types are mapped
// with GORM and form the core data layer of the bulk publishing application.
package domain

import (
	"strings"
	"time"
)

// MediaKind identifies the type of media attached to a post. The external
// publishing API treats images and videos differently (separate reference
// fields on container creation, and much longer processing times for video).
type MediaKind string

const (
	// MediaImage is a static image post.
	MediaImage MediaKind = "image"
	// MediaVideo is a video post (published as a reel).
	MediaVideo MediaKind = "video"
)

// Valid reports whether k is one of the supported media kinds.
func (k MediaKind) Valid() bool { return k == MediaImage || k == MediaVideo }

// ScheduledPost represents a post that has been composed and queued for
// delivery at a future instant. It is the central entity of the scheduling
// pipeline: created by the composition flow, claimed by exactly one scheduler
// pass, and deleted after one full fan-out attempt.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - AccountIDs: comma-separated destination account identifiers, in the
//     order chosen by the operator (deduplicated before storage).
//   - Caption: post caption, shared by every destination.
//   - MediaURL: public HTTPS URL of the uploaded asset.
//   - StorageID: opaque storage handle used to delete the asset after the run.
//   - MediaKind: "image" or "video" (enforced by DB constraint).
//   - ScheduledAt: absolute execution instant, always stored in UTC.
//   - Username: operator who scheduled the post (for the audit log).
//   - InProgress: claim flag; a post is visible to the scheduler only while
//     this is false and ScheduledAt <= now.
//   - CreatedAt: timestamp managed by GORM.
type ScheduledPost struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	AccountIDs  string    `json:"account_ids"  gorm:"type:text;not null"`
	Caption     string    `json:"caption"      gorm:"type:text;not null"`
	MediaURL    string    `json:"media_url"    gorm:"type:text;not null"`
	StorageID   string    `json:"storage_id"   gorm:"type:text;not null"`
	MediaKind   MediaKind `json:"media_kind"   gorm:"type:varchar(8);not null;check:media_kind IN ('image','video')"`
	ScheduledAt time.Time `json:"scheduled_at" gorm:"not null;index:idx_due,priority:1"`
	Username    string    `json:"username"     gorm:"type:varchar(64);not null"`
	InProgress  bool      `json:"in_progress"  gorm:"not null;default:false;index:idx_due,priority:2"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ScheduledPost.
func (ScheduledPost) TableName() string { return "scheduled_posts" }

// Accounts splits the stored CSV identifier list back into a slice,
// preserving the stored order.
func (p ScheduledPost) Accounts() []string { return SplitIDList(p.AccountIDs) }

// PostLog is an append-only audit record of one completed fan-out run,
// scheduled or immediate. Exactly one row is written per run, after every
// destination account has produced an outcome.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Username: operator on whose behalf the run executed.
//   - AccountIDs: comma-separated destination identifiers of the run.
//   - Caption: caption that was published.
//   - MediaKind: "image" or "video".
//   - Results: newline-separated per-account outcome summary.
//   - CreatedAt: run completion time (UTC), indexed for listing.
type PostLog struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Username   string    `json:"username"    gorm:"type:varchar(64);not null;index"`
	AccountIDs string    `json:"account_ids" gorm:"type:text;not null"`
	Caption    string    `json:"caption"     gorm:"type:text;not null"`
	MediaKind  MediaKind `json:"media_kind"  gorm:"type:varchar(8);not null"`
	Results    string    `json:"results"     gorm:"type:text;not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index"`
}

// TableName returns the database table name for PostLog.
func (PostLog) TableName() string { return "post_logs" }

// Group is an operator-defined named set of destination accounts, used to
// select many accounts at once when composing a post. Membership is an
// ordered list; changes replace the full member list.
type Group struct {
	ID        string         `json:"id"       gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"     gorm:"type:varchar(128);not null;uniqueIndex"`
	CreatedAt time.Time      `json:"created_at"`
	Accounts  []GroupAccount `json:"accounts" gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "groups" }

// GroupAccount is one destination account membership within a Group.
// Position preserves the order members were added in.
type GroupAccount struct {
	ID        string `json:"id"         gorm:"type:char(36);primaryKey"`
	GroupID   string `json:"group_id"   gorm:"type:char(36);not null;index"`
	AccountID string `json:"account_id" gorm:"type:varchar(64);not null"`
	Position  int    `json:"position"   gorm:"not null"`
}

// TableName returns the database table name for GroupAccount.
func (GroupAccount) TableName() string { return "group_accounts" }

// RunLock is a named mutual-exclusion row preventing two scheduler
// invocations from processing the same batch of due posts concurrently.
// At most one live row exists per lock name; a row older than the configured
// staleness threshold is treated as abandoned and may be taken over by the
// next acquire attempt.
type RunLock struct {
	Name     string    `json:"name"      gorm:"type:varchar(100);primaryKey"`
	LockedAt time.Time `json:"locked_at" gorm:"not null"`
	LockedBy string    `json:"locked_by" gorm:"type:varchar(200);not null"`
}

// TableName returns the database table name for RunLock.
func (RunLock) TableName() string { return "run_locks" }

// JoinIDList serializes an identifier slice into the CSV form stored on
// ScheduledPost and PostLog rows. Blank entries are skipped.
func JoinIDList(ids []string) string {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if s := strings.TrimSpace(id); s != "" {
			clean = append(clean, s)
		}
	}
	return strings.Join(clean, ",")
}

// SplitIDList parses a stored CSV identifier list, dropping empty segments
// and surrounding whitespace. It returns an empty slice for an empty input.
func SplitIDList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

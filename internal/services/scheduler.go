// Package services: scheduler
//
// This file implements the two core entry points of the pipeline:
//
//   - Schedule: persist a composed post for later delivery, with group
//     expansion, first-seen-order deduplication, and UTC normalization of
//     the operator's local schedule time.
//   - RunDuePosts: one scheduler pass: rate-gate, take the distributed run
//     lock, then claim → fan out → delete each due post in scheduled-time
//     order, releasing the claim when a fan-out fails to start.
//
// Two independent levels of mutual exclusion protect the pass: the named
// run lock guarantees at most one batch in flight across processes, and the
// per-record claim flag guarantees no single post is processed twice even
// if the outer lock is ever bypassed.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/repo"
)

// RunLockName is the single global lock guarding scheduler passes.
const RunLockName = "publish_runner"

// PostSpec is the input for composing a post, immediate or scheduled.
type PostSpec struct {
	// AccountIDs are explicitly selected destination accounts, in the
	// operator's chosen order.
	AccountIDs []string
	// Groups are group names to expand; members are appended after the
	// explicit accounts, first-seen order, duplicates dropped.
	Groups []string
	// Caption is the shared post caption.
	Caption string
	// MediaURL is the public HTTPS URL of the uploaded asset.
	MediaURL string
	// StorageID is the asset's storage handle for post-run cleanup.
	StorageID string
	// Kind is the media kind (image or video).
	Kind domain.MediaKind
	// At is the requested execution instant, in any timezone; stored as UTC.
	// Ignored by PublishNow.
	At time.Time
	// Username is the composing operator.
	Username string
}

// PostStore is the scheduled-post repository contract consumed by the
// scheduler. Implementations wrap the repo package's free functions.
type PostStore interface {
	Create(ctx context.Context, db *gorm.DB, accountIDs []string, caption, mediaURL, storageID string, kind domain.MediaKind, scheduledAt time.Time, username string) (*domain.ScheduledPost, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.ScheduledPost, error)
	Claim(ctx context.Context, db *gorm.DB, id string) error
	Release(ctx context.Context, db *gorm.DB, id string) error
	Delete(ctx context.Context, db *gorm.DB, id string) error
}

// LockStore is the run-lock repository contract consumed by the scheduler.
type LockStore interface {
	Acquire(ctx context.Context, db *gorm.DB, name, holderID string, now time.Time, staleAfter time.Duration) (bool, error)
	Release(ctx context.Context, db *gorm.DB, name, holderID string) error
}

// Orchestrator runs one post's fan-out; satisfied by *Fanout.
type Orchestrator interface {
	Execute(ctx context.Context, post *domain.ScheduledPost) ([]Outcome, error)
}

// GroupExpander expands group names into member account IDs; satisfied by
// *Groups.
type GroupExpander interface {
	Expand(ctx context.Context, explicit []string, groupNames []string) ([]string, error)
}

// Scheduler owns post scheduling and the periodic due-post pass.
type Scheduler struct {
	// DB is the GORM handle passed to the repositories.
	DB *gorm.DB
	// Posts is the scheduled-post store.
	Posts PostStore
	// Locks is the run-lock store.
	Locks LockStore
	// Fanout runs one post across its accounts.
	Fanout Orchestrator
	// GroupsSvc expands selected group names (optional; nil skips expansion).
	GroupsSvc GroupExpander

	// HolderID identifies this scheduler instance in the run lock row.
	HolderID string
	// LockStale is the staleness threshold for abandoned-lock recovery.
	// It must exceed the worst-case fan-out duration (video-dominated).
	LockStale time.Duration

	// limiter enforces the minimum interval between passes even when the
	// host triggers more frequently (e.g. a UI render loop).
	limiter *rate.Limiter

	// now is an injectable clock.
	now func() time.Time
}

// NewScheduler constructs a Scheduler. minInterval gates how often
// RunDuePosts actually executes; lockStale configures stale-lock recovery.
func NewScheduler(db *gorm.DB, fanout Orchestrator, groups GroupExpander, minInterval, lockStale time.Duration) *Scheduler {
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	if lockStale <= 0 {
		lockStale = 30 * time.Minute
	}
	return &Scheduler{
		DB:        db,
		Posts:     postStoreShim{},
		Locks:     lockStoreShim{},
		Fanout:    fanout,
		GroupsSvc: groups,
		HolderID:  fmt.Sprintf("runner-%s", uuid.NewString()),
		LockStale: lockStale,
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
		now:       time.Now,
	}
}

// Schedule validates and persists spec as a ScheduledPost due at spec.At
// (converted to UTC). It returns the stored post, whose ScheduledAt is the
// resolved UTC execution instant.
func (s *Scheduler) Schedule(ctx context.Context, spec PostSpec) (*domain.ScheduledPost, error) {
	accounts, err := s.resolveAccounts(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := validateMedia(spec); err != nil {
		return nil, err
	}

	post, err := s.Posts.Create(ctx, s.DB, accounts, normalizeCaption(spec.Caption), spec.MediaURL, spec.StorageID, spec.Kind, spec.At.UTC(), spec.Username)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("post_id", post.ID).
		Time("scheduled_at", post.ScheduledAt).
		Int("accounts", len(accounts)).
		Msg("post scheduled")
	return post, nil
}

// PublishNow runs the fan-out immediately for spec, without persisting a
// scheduled record. Used by the interactive "post now" flow.
func (s *Scheduler) PublishNow(ctx context.Context, spec PostSpec) ([]Outcome, error) {
	accounts, err := s.resolveAccounts(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := validateMedia(spec); err != nil {
		return nil, err
	}
	post := &domain.ScheduledPost{
		ID:         uuid.NewString(),
		AccountIDs: domain.JoinIDList(accounts),
		Caption:    normalizeCaption(spec.Caption),
		MediaURL:   spec.MediaURL,
		StorageID:  spec.StorageID,
		MediaKind:  spec.Kind,
		Username:   spec.Username,
	}
	return s.Fanout.Execute(ctx, post)
}

// RunDuePosts executes one scheduler pass at instant now and returns the
// aggregated outcomes of every post processed.
//
// A rate-gated or lock-contended pass returns (nil, nil): both are valid
// "nothing to do" signals, not failures. Store errors on individual posts
// are logged and skip to the next due post; only failures occurring before
// any post is claimed (lock/list errors) propagate to the caller, which
// should simply retry on its next interval.
func (s *Scheduler) RunDuePosts(ctx context.Context, now time.Time) ([]Outcome, error) {
	if !s.limiter.Allow() {
		log.Debug().Msg("scheduler pass skipped: minimum interval not elapsed")
		return nil, nil
	}

	ok, err := s.Locks.Acquire(ctx, s.DB, RunLockName, s.HolderID, now, s.LockStale)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		log.Info().Msg("scheduler pass skipped: another runner holds the lock")
		return nil, nil
	}
	defer func() {
		if rerr := s.Locks.Release(ctx, s.DB, RunLockName, s.HolderID); rerr != nil {
			log.Error().Err(rerr).Msg("run lock release failed")
		}
	}()

	due, err := s.Posts.ListDue(ctx, s.DB, now)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	if len(due) == 0 {
		return nil, nil
	}
	log.Info().Int("due", len(due)).Time("now", now.UTC()).Msg("processing due posts")

	var all []Outcome
	for i := range due {
		post := &due[i]
		if err := s.Posts.Claim(ctx, s.DB, post.ID); err != nil {
			if errors.Is(err, repo.ErrAlreadyClaimed) || errors.Is(err, repo.ErrNotFound) {
				log.Debug().Str("post_id", post.ID).Msg("post claimed elsewhere; skipping")
			} else {
				log.Error().Err(err).Str("post_id", post.ID).Msg("claim failed; skipping")
			}
			continue
		}

		outcomes, err := s.executeClaimed(ctx, post)
		if err != nil {
			// The fan-out never started: release the claim so the post is
			// picked up again on the next pass.
			log.Error().Err(err).Str("post_id", post.ID).Msg("fan-out failed to start; releasing claim")
			if rerr := s.Posts.Release(ctx, s.DB, post.ID); rerr != nil {
				log.Error().Err(rerr).Str("post_id", post.ID).Msg("claim release failed")
			}
			continue
		}
		all = append(all, outcomes...)

		// One full pass is terminal, whatever the outcome mix.
		if derr := s.Posts.Delete(ctx, s.DB, post.ID); derr != nil {
			log.Error().Err(derr).Str("post_id", post.ID).Msg("post delete failed")
		}
	}
	return all, nil
}

// executeClaimed invokes the fan-out, converting a panic into an error so a
// defective run releases the claim instead of wedging the post forever.
func (s *Scheduler) executeClaimed(ctx context.Context, post *domain.ScheduledPost) (outcomes []Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcomes, err = nil, fmt.Errorf("fan-out panic: %v", r)
		}
	}()
	return s.Fanout.Execute(ctx, post)
}

// resolveAccounts merges explicit accounts with expanded groups and
// validates the result is non-empty.
func (s *Scheduler) resolveAccounts(ctx context.Context, spec PostSpec) ([]string, error) {
	if s.GroupsSvc == nil {
		deduped := dedupeFirstSeen(spec.AccountIDs)
		if len(deduped) == 0 {
			return nil, ErrNoAccounts
		}
		return deduped, nil
	}
	accounts, err := s.GroupsSvc.Expand(ctx, spec.AccountIDs, spec.Groups)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts, nil
}

// validateMedia checks the media kind and URL constraints shared by
// Schedule and PublishNow.
func validateMedia(spec PostSpec) error {
	if !spec.Kind.Valid() {
		return ErrInvalidMediaKind
	}
	if !strings.HasPrefix(strings.ToLower(spec.MediaURL), "https://") {
		return ErrInvalidMediaURL
	}
	return nil
}

// normalizeCaption trims and NFC-normalizes the caption so equivalent
// operator input produces byte-identical captions across accounts.
func normalizeCaption(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// dedupeFirstSeen removes duplicates preserving first-seen order.
func dedupeFirstSeen(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

//
// Repo shims: adapt the repository free functions to the store interfaces,
// keeping the scheduler decoupled from the concrete repo package.
//

type postStoreShim struct{}

func (postStoreShim) Create(ctx context.Context, db *gorm.DB, accountIDs []string, caption, mediaURL, storageID string, kind domain.MediaKind, scheduledAt time.Time, username string) (*domain.ScheduledPost, error) {
	return repo.CreateScheduledPost(ctx, db, accountIDs, caption, mediaURL, storageID, kind, scheduledAt, username)
}

func (postStoreShim) ListDue(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.ScheduledPost, error) {
	return repo.ListDuePosts(ctx, db, now)
}

func (postStoreShim) Claim(ctx context.Context, db *gorm.DB, id string) error {
	return repo.ClaimPost(ctx, db, id)
}

func (postStoreShim) Release(ctx context.Context, db *gorm.DB, id string) error {
	return repo.ReleasePost(ctx, db, id)
}

func (postStoreShim) Delete(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeletePost(ctx, db, id)
}

type lockStoreShim struct{}

func (lockStoreShim) Acquire(ctx context.Context, db *gorm.DB, name, holderID string, now time.Time, staleAfter time.Duration) (bool, error) {
	return repo.AcquireRunLock(ctx, db, name, holderID, now, staleAfter)
}

func (lockStoreShim) Release(ctx context.Context, db *gorm.DB, name, holderID string) error {
	return repo.ReleaseRunLock(ctx, db, name, holderID)
}

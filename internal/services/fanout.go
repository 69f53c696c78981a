// Package services: fan-out orchestrator
//
// This file runs the publish protocol driver across every destination
// account of one post and produces a single aggregated result plus the
// run's side effects: exactly one media asset cleanup and exactly one audit
// log row, regardless of the per-account outcome mix.
package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/growhub/instabulk/internal/domain"
)

// AccountPublisher runs the publish protocol for one destination account;
// satisfied by *Publisher.
type AccountPublisher interface {
	PublishOne(ctx context.Context, accountID, accountName, mediaURL, caption string, kind domain.MediaKind) Outcome
}

// NameResolver resolves destination account IDs to display names. Lookups
// are best-effort: the orchestrator falls back to raw identifiers when the
// resolver fails, and never blocks a publish on it.
type NameResolver interface {
	DisplayNames(ctx context.Context) (map[string]string, error)
}

// MediaCleaner deletes an uploaded media asset; satisfied by the storage
// client. Failures are logged, never propagated.
type MediaCleaner interface {
	Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error
}

// AuditRepo appends one audit row per completed run.
type AuditRepo interface {
	Append(ctx context.Context, db *gorm.DB, username string, accountIDs []string, caption string, kind domain.MediaKind, results []string) (*domain.PostLog, error)
}

// Fanout orchestrates one post across all of its destination accounts.
//
// Per-account publishes are independent network operations and run on a
// bounded worker pool; outcomes land in a slice indexed by the account's
// stored position, so the aggregated result is deterministic regardless of
// completion order.
type Fanout struct {
	// DB is the GORM handle passed to the audit repository.
	DB *gorm.DB
	// Publisher drives the per-account protocol.
	Publisher AccountPublisher
	// Directory resolves display names (best-effort).
	Directory NameResolver
	// Storage deletes the uploaded asset after the run.
	Storage MediaCleaner
	// Audit appends the run's audit row.
	Audit AuditRepo
	// Workers bounds concurrent per-account publishes (default 4).
	Workers int
}

// NewFanout constructs a Fanout with the default worker bound.
func NewFanout(db *gorm.DB, pub AccountPublisher, dir NameResolver, store MediaCleaner, audit AuditRepo) *Fanout {
	return &Fanout{
		DB:        db,
		Publisher: pub,
		Directory: dir,
		Storage:   store,
		Audit:     audit,
		Workers:   4,
	}
}

// Execute publishes post to every destination account and returns the full
// per-account outcome list, in stored account order. After all accounts are
// processed it deletes the uploaded asset and appends one audit row, both
// exactly once per call, whatever the outcome mix. An error is returned
// only when no outcome was produced at all (zero accounts, or the context
// was already cancelled); once any account has been attempted the result is
// always the outcome list.
func (f *Fanout) Execute(ctx context.Context, post *domain.ScheduledPost) ([]Outcome, error) {
	accounts := post.Accounts()
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := f.resolveNames(ctx)

	workers := f.Workers
	if workers < 1 {
		workers = 4
	}
	if workers > len(accounts) {
		workers = len(accounts)
	}

	outcomes := make([]Outcome, len(accounts))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, accountID := range accounts {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[idx] = f.Publisher.PublishOne(ctx, id, names[id], post.MediaURL, post.Caption, post.MediaKind)
		}(i, accountID)
	}
	wg.Wait()

	// Cleanup and audit run unconditionally, each exactly once per call.
	if err := f.Storage.Destroy(ctx, post.StorageID, post.MediaKind); err != nil {
		log.Warn().Err(err).Str("storage_id", post.StorageID).Msg("media asset cleanup failed")
	}

	results := make([]string, len(outcomes))
	for i, o := range outcomes {
		results[i] = o.Summary()
	}
	if _, err := f.Audit.Append(ctx, f.DB, post.Username, accounts, post.Caption, post.MediaKind, results); err != nil {
		log.Error().Err(err).Str("post_id", post.ID).Msg("audit log append failed")
	}

	return outcomes, nil
}

// resolveNames fetches display names, degrading to raw IDs on failure.
func (f *Fanout) resolveNames(ctx context.Context) map[string]string {
	if f.Directory == nil {
		return map[string]string{}
	}
	names, err := f.Directory.DisplayNames(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("display name lookup failed; using raw account ids")
		return map[string]string{}
	}
	return names
}

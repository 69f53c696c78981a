// Package services: destination directory
//
// This file resolves the configured credentials into publishable
// destination accounts (ID → display name) with a bounded-TTL cache and an
// explicit force-refresh, replacing the original system's ambient
// session-state caching with a constructed object.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AccountLister lists destination accounts; satisfied by *graph.Client.
type AccountLister interface {
	Accounts(ctx context.Context) (map[string]string, error)
}

// Directory caches the destination account listing for a bounded TTL.
// An empty listing is valid ("nothing to do"), cached like any other.
type Directory struct {
	api AccountLister
	ttl time.Duration

	mu        sync.Mutex
	cached    map[string]string
	fetchedAt time.Time

	// now is an injectable clock.
	now func() time.Time
}

// NewDirectory constructs a Directory caching listings for ttl
// (default 5 minutes).
func NewDirectory(api AccountLister, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{api: api, ttl: ttl, now: time.Now}
}

// List returns the account map, refreshing from the platform when the
// cache is cold, expired, or force is set. The returned map must not be
// mutated by callers.
func (d *Directory) List(ctx context.Context, force bool) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !force && d.cached != nil && d.now().Sub(d.fetchedAt) < d.ttl {
		return d.cached, nil
	}

	accounts, err := d.api.Accounts(ctx)
	if err != nil {
		// Serve a stale cache over failing, when one exists.
		if d.cached != nil {
			log.Warn().Err(err).Msg("account listing refresh failed; serving cached entries")
			return d.cached, nil
		}
		return nil, err
	}
	d.cached = accounts
	d.fetchedAt = d.now()
	return d.cached, nil
}

// DisplayNames implements NameResolver for the fan-out orchestrator.
func (d *Directory) DisplayNames(ctx context.Context) (map[string]string, error) {
	return d.List(ctx, false)
}

// Handler wiring for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Service contracts are defined
// here as narrow interfaces so handler tests can script them without a
// database or network.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/http/middleware"
	"github.com/growhub/instabulk/internal/services"
	"github.com/growhub/instabulk/internal/storage"
	"github.com/growhub/instabulk/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService defines operator session operations consumed by HTTP handlers.
type AuthService interface {
	// Login verifies credentials and mints a session token.
	Login(ctx context.Context, username, password string) (string, error)
	// Logout invalidates the session token.
	Logout(ctx context.Context, token string) error
}

// PublishService defines post composition and scheduling operations.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation.
type PublishService interface {
	// Schedule persists a post for later delivery.
	Schedule(ctx context.Context, spec services.PostSpec) (*domain.ScheduledPost, error)
	// PublishNow runs the fan-out immediately without persisting.
	PublishNow(ctx context.Context, spec services.PostSpec) ([]services.Outcome, error)
	// RunDuePosts executes one due-post pass.
	RunDuePosts(ctx context.Context, now time.Time) ([]services.Outcome, error)
}

// PostStore defines the scheduled-post queries the handlers need beyond the
// publish service.
type PostStore interface {
	// List returns scheduled posts, optionally scoped to a username.
	List(ctx context.Context, username string) ([]domain.ScheduledPost, error)
	// Get returns one scheduled post by ID.
	Get(ctx context.Context, id string) (*domain.ScheduledPost, error)
	// Delete removes a scheduled post.
	Delete(ctx context.Context, id string) error
}

// GroupService defines account-group management operations.
type GroupService interface {
	Create(ctx context.Context, name string, accountIDs []string) (*domain.Group, error)
	List(ctx context.Context) ([]domain.Group, error)
	Replace(ctx context.Context, groupID string, accountIDs []string) error
	Delete(ctx context.Context, groupID string) error
}

// DirectoryService lists publishable destination accounts.
type DirectoryService interface {
	List(ctx context.Context, force bool) (map[string]string, error)
}

// LogStore reads the audit log.
type LogStore interface {
	Count(ctx context.Context, username string) (int64, error)
	ListPage(ctx context.Context, username string, offset, limit int) ([]domain.PostLog, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for auth, posts, groups, accounts, and
// the audit log. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	auth      AuthService
	publish   PublishService
	posts     PostStore
	groups    GroupService
	directory DirectoryService
	media     storage.Store
	logs      LogStore
}

// New constructs a Handlers instance bound to the given services.
func New(auth AuthService, publish PublishService, posts PostStore, groups GroupService, directory DirectoryService, media storage.Store, logs LogStore) *Handlers {
	return &Handlers{
		auth:      auth,
		publish:   publish,
		posts:     posts,
		groups:    groups,
		directory: directory,
		media:     media,
		logs:      logs,
	}
}

// username extracts the authenticated operator name stored by the session
// middleware. Empty means the route was mounted without auth (tests).
func username(c *gin.Context) string {
	return middleware.Username(c)
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

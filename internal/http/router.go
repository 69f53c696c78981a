// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, session auth, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/growhub/instabulk/docs"
	"github.com/growhub/instabulk/internal/config"
	"github.com/growhub/instabulk/internal/domain"
	"github.com/growhub/instabulk/internal/graph"
	"github.com/growhub/instabulk/internal/http/handlers"
	"github.com/growhub/instabulk/internal/http/middleware"
	"github.com/growhub/instabulk/internal/repo"
	"github.com/growhub/instabulk/internal/services"
	"github.com/growhub/instabulk/internal/storage"
)

// Outbound HTTP client timeouts. Media uploads carry file bodies and get a
// longer budget than the JSON-only platform calls.
const (
	graphClientTimeout   = 30 * time.Second
	storageClientTimeout = 2 * time.Minute
	directoryCacheTTL    = 5 * time.Minute
)

// postStoreShim adapts the repository free functions to the
// handlers.PostStore interface. This keeps handlers decoupled from the
// concrete repo package while reusing existing functions.
type postStoreShim struct{ db *gorm.DB }

// List proxies repo.ListScheduledPosts.
func (s postStoreShim) List(ctx context.Context, username string) ([]domain.ScheduledPost, error) {
	return repo.ListScheduledPosts(ctx, s.db, username)
}

// Get proxies repo.GetScheduledPost.
func (s postStoreShim) Get(ctx context.Context, id string) (*domain.ScheduledPost, error) {
	return repo.GetScheduledPost(ctx, s.db, id)
}

// Delete proxies repo.DeletePost.
func (s postStoreShim) Delete(ctx context.Context, id string) error {
	return repo.DeletePost(ctx, s.db, id)
}

// logStoreShim adapts the audit log repository functions to
// handlers.LogStore.
type logStoreShim struct{ db *gorm.DB }

// Count proxies repo.CountPostLogs.
func (s logStoreShim) Count(ctx context.Context, username string) (int64, error) {
	return repo.CountPostLogs(ctx, s.db, username)
}

// ListPage proxies repo.ListPostLogsPage.
func (s logStoreShim) ListPage(ctx context.Context, username string, offset, limit int) ([]domain.PostLog, error) {
	return repo.ListPostLogsPage(ctx, s.db, username, offset, limit)
}

// auditRepoShim adapts repo.AppendPostLog to the services.AuditRepo
// interface consumed by the fan-out orchestrator.
type auditRepoShim struct{}

// Append proxies repo.AppendPostLog.
func (auditRepoShim) Append(ctx context.Context, db *gorm.DB, username string, accountIDs []string, caption string, kind domain.MediaKind, results []string) (*domain.PostLog, error) {
	return repo.AppendPostLog(ctx, db, username, accountIDs, caption, kind, results)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health and metrics endpoints, and then mounts
// the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured request logs with query redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Response compression
//  8. Rate limiter (per session user/IP)
//  9. CORS and Security headers
//
// Session auth is not global: it wraps the protected API group so /health,
// /metrics, and /auth/login stay reachable without a token.
//
// The wired scheduler is returned so the process can drive due-post passes
// from a background trigger against the same limiter state the API uses.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *services.Scheduler {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging (sensitive query params masked)
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (50 MiB: compose carries media files)
	r.Use(limitBody(50 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compress JSON responses; metrics stays uncompressed for scrapers
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 8) Token-bucket rate limiter per session user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderSessionToken},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderSessionToken},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← clients/repo/db
	deps := buildServices(db, cfg)
	authSvc := services.NewAuth(db, cfg.Auth.Credentials, cfg.Auth.SessionTTL)

	h := handlers.New(authSvc, deps.scheduler, postStoreShim{db}, deps.groups, deps.directory, deps.media, logStoreShim{db})

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)

	// Login is the only unauthenticated endpoint
	api.POST("/auth/login", h.Login)

	authed := api.Group("", middleware.SessionAuth(authSvc.Validate))
	{
		// Session
		authed.POST("/auth/logout", h.Logout)

		// Posts
		authed.POST("/posts", h.ComposePost)
		authed.GET("/posts", h.ListPosts)
		authed.DELETE("/posts/:id", h.CancelPost)
		authed.POST("/posts/run", h.RunDue)

		// Groups
		authed.POST("/groups", h.CreateGroup)
		authed.GET("/groups", h.ListGroups)
		authed.PUT("/groups/:id/accounts", h.ReplaceGroupMembers)
		authed.DELETE("/groups/:id", h.DeleteGroup)

		// Accounts and audit log
		authed.GET("/accounts", h.ListAccounts)
		authed.GET("/logs", h.ListLogs)
	}

	return deps.scheduler
}

// serviceSet is the wired application service graph shared by the HTTP
// surface and the out-of-band scheduler triggers.
type serviceSet struct {
	scheduler *services.Scheduler
	groups    *services.Groups
	directory *services.Directory
	media     storage.Store
}

// buildServices wires the platform client, media storage, and application
// services from configuration. One graph per process: the directory cache
// and the scheduler's pass limiter are stateful.
func buildServices(db *gorm.DB, cfg config.Config) serviceSet {
	gc := graph.NewClient(cfg.Graph.BaseURL, cfg.Graph.AccessToken, graphClientTimeout)
	store := storage.NewCloudinary(storage.DefaultBaseURL, cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, storageClientTimeout)
	dirSvc := services.NewDirectory(gc, directoryCacheTTL)
	groupSvc := services.NewGroups(db)

	pub := services.NewPublisher(gc)
	pub.Poll = services.PollConfig{
		Interval:    cfg.Graph.PollEvery,
		ImageBudget: cfg.Graph.ImageBudget,
		VideoBudget: cfg.Graph.VideoBudget,
	}
	pub.PublishRetryMax = cfg.Graph.RetryMax
	pub.PublishRetryBase = cfg.Graph.RetryBase

	fan := services.NewFanout(db, pub, dirSvc, store, auditRepoShim{})
	fan.Workers = cfg.Scheduler.Workers

	sched := services.NewScheduler(db, fan, groupSvc, cfg.Scheduler.MinInterval, cfg.Scheduler.LockStale)
	return serviceSet{scheduler: sched, groups: groupSvc, directory: dirSvc, media: store}
}

// NewScheduler builds the due-post scheduler with the same dependency graph
// RegisterRoutes wires for the API, for callers that run passes outside the
// HTTP surface (the cron trigger and the one-shot runner binary).
func NewScheduler(db *gorm.DB, cfg config.Config) *services.Scheduler {
	return buildServices(db, cfg).scheduler
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

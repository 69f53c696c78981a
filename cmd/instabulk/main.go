// Command instabulk runs the publishing API server and the background
// due-post trigger in one process.
//
// Startup order:
//  1. Load .env (optional) and environment configuration
//  2. Configure global logging
//  3. Open SQLite and migrate the schema
//  4. Set up OpenTelemetry tracing (optional)
//  5. Wire the Gin router and the scheduler
//  6. Start the cron trigger and the HTTP server
//
// Shutdown is graceful: SIGINT/SIGTERM stops the cron trigger, drains
// in-flight HTTP requests, and flushes traces.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/growhub/instabulk/internal/config"
	httpapi "github.com/growhub/instabulk/internal/http"
	"github.com/growhub/instabulk/internal/observability"
	"github.com/growhub/instabulk/internal/repo"
	"github.com/growhub/instabulk/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// shutdownGrace bounds how long draining in-flight requests may take.
const shutdownGrace = 15 * time.Second

// @title        instabulk API
// @version      1.0
// @description  Bulk multi-account publishing: compose once, deliver everywhere.
//
// @BasePath  /api/v1
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	// .env is a developer convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	engine := gin.New()
	scheduler := httpapi.RegisterRoutes(engine, db, cfg)

	// Background due-post trigger. Each tick runs at most one pass; the
	// scheduler's own limiter and the DB run lock keep overlapping ticks
	// and sibling processes from doubling up.
	c := cron.New()
	if _, err := c.AddFunc(cfg.Scheduler.CronSpec, func() {
		passCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.LockStale)
		defer cancel()
		outcomes, err := scheduler.RunDuePosts(passCtx, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("due-post pass failed")
			return
		}
		if len(outcomes) > 0 {
			log.Info().Int("outcomes", len(outcomes)).Msg("due-post pass completed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Scheduler.CronSpec).Msg("schedule due-post trigger")
	}
	c.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	cronCtx := c.Stop() // wait for a running pass to finish
	<-cronCtx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(drainCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}

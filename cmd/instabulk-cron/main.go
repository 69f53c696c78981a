// Command instabulk-cron runs exactly one due-post pass and exits. It is
// meant for external schedulers (system cron, Kubernetes CronJob) when the
// API server's built-in trigger is disabled or runs elsewhere. The shared
// run lock makes concurrent invocations safe.
package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/growhub/instabulk/internal/config"
	httpapi "github.com/growhub/instabulk/internal/http"
	"github.com/growhub/instabulk/internal/repo"
	"github.com/growhub/instabulk/internal/sysutil"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	// A pass that outlives the lock staleness window would be taken over
	// by another runner anyway; bound it there.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.LockStale)
	defer cancel()

	outcomes, err := httpapi.NewScheduler(db, cfg).RunDuePosts(ctx, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("due-post pass failed")
	}

	for _, o := range outcomes {
		log.Info().
			Str("account_id", o.AccountID).
			Bool("published", o.Published).
			Str("post_id", o.PostID).
			Str("reason", o.Reason).
			Msg(o.Summary())
	}
	log.Info().Int("outcomes", len(outcomes)).Msg("pass complete")
}

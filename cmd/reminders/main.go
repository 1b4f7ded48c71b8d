// Command reminders runs a single reminder pass and exits. Safe to run
// repeatedly: existing reminders are never duplicated.
package main

import (
	"context"
	"os"
	"time"

	"github.com/BivasNandan/Law-Aid-sub001/internal/config"
	"github.com/BivasNandan/Law-Aid-sub001/internal/database"
	"github.com/BivasNandan/Law-Aid-sub001/internal/logging"
	"github.com/BivasNandan/Law-Aid-sub001/internal/mail"
	"github.com/BivasNandan/Law-Aid-sub001/internal/reminder"
)

// offline drops realtime pushes; this process has no connected clients.
type offline struct{}

func (offline) EmitToUser(string, string, any)         {}
func (offline) EmitToConversation(string, string, any) {}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	scheduler := reminder.New(db, offline{}, mail.New(cfg.SMTP, logger), reminder.Config{
		Interval: cfg.Reminder.Interval,
		Window:   cfg.Reminder.Window,
		Lead:     cfg.Reminder.Lead,
		Cron:     cfg.Reminder.Cron,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := scheduler.RunOnce(ctx)
	scheduler.Wait()
	if err != nil {
		logger.Error().Err(err).Msg("reminder pass failed")
		os.Exit(1)
	}
	logger.Info().
		Int("scanned", res.Scanned).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("reminder pass complete")
}

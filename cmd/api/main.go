package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/BivasNandan/Law-Aid-sub001/internal/auth"
	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/config"
	"github.com/BivasNandan/Law-Aid-sub001/internal/database"
	"github.com/BivasNandan/Law-Aid-sub001/internal/http/handlers"
	"github.com/BivasNandan/Law-Aid-sub001/internal/lock"
	"github.com/BivasNandan/Law-Aid-sub001/internal/logging"
	"github.com/BivasNandan/Law-Aid-sub001/internal/mail"
	"github.com/BivasNandan/Law-Aid-sub001/internal/notification"
	"github.com/BivasNandan/Law-Aid-sub001/internal/reminder"
	"github.com/BivasNandan/Law-Aid-sub001/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisURL != "" {
		client, err := lock.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer client.Close()
		locker = lock.NewRedis(client, 10*time.Second)
		logger.Info().Msg("using redis locks")
	}

	hub := ws.NewHub(logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)
	chatSvc := chat.NewService(db, hub, locker, logger)
	mailer := mail.New(cfg.SMTP, logger)

	scheduler := reminder.New(db, hub, mailer, reminder.Config{
		Interval: cfg.Reminder.Interval,
		Window:   cfg.Reminder.Window,
		Lead:     cfg.Reminder.Lead,
		Cron:     cfg.Reminder.Cron,
	}, logger)

	gateway := ws.NewGateway(hub, chatSvc, verifier, ws.Options{
		InsecureSkipVerify: cfg.WSInsecureSkipVerify,
		OriginPatterns:     originPatterns(cfg.FrontendURL),
	}, logger)

	router := handlers.NewRouter(handlers.Deps{
		DB:             db,
		Chat:           chatSvc,
		Notifications:  notification.NewService(db, logger),
		Reminders:      scheduler,
		Gateway:        gateway,
		Verifier:       verifier,
		Logger:         logger,
		FrontendURL:    cfg.FrontendURL,
		InternalAPIKey: cfg.InternalAPIKey,
	})

	var schedulerDone <-chan struct{}
	if cfg.Reminder.Enabled {
		schedulerDone = scheduler.Start(ctx)
	} else {
		logger.Info().Msg("reminder scheduler disabled")
	}

	// No write timeout: websocket connections are long-lived.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if schedulerDone != nil {
		<-schedulerDone
	}
	scheduler.Wait()

	logger.Info().Msg("server stopped")
}

// originPatterns allows websocket upgrades from the configured frontend.
func originPatterns(frontendURL string) []string {
	u, err := url.Parse(frontendURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

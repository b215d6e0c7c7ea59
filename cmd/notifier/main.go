// Command notifier is the nextClass notification service.
//
// Usage:
//
//	nextclass-notify serve
//	nextclass-notify check
//	API_PORT=8080 nextclass-notify serve
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rahulmindslate/nextclass-notify/internal/api"
	"github.com/rahulmindslate/nextclass-notify/internal/config"
	"github.com/rahulmindslate/nextclass-notify/internal/db"
	"github.com/rahulmindslate/nextclass-notify/internal/directory"
	"github.com/rahulmindslate/nextclass-notify/internal/notify"
	"github.com/rahulmindslate/nextclass-notify/internal/otp"
	"github.com/rahulmindslate/nextclass-notify/internal/timetable"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "nextclass-notify",
		Short: "Class reminder push notification service",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the notification scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Info("Connecting to database...")
			pool, err := db.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()
			logger.Info("Database connected",
				"min_conns", cfg.DBPoolMinConns,
				"max_conns", cfg.DBPoolMaxConns)

			scheduler, ledger, err := buildEngine(ctx, cfg, pool)
			if err != nil {
				return err
			}
			if c, ok := ledger.(interface{ Close() error }); ok {
				defer c.Close()
			}

			if cfg.AutoStart {
				scheduler.Start()
			} else {
				logger.Info("Notification scheduler idle (NOTIFY_AUTOSTART=false)")
			}

			// OTP sign-in codes
			var mailer otp.Mailer
			if cfg.ResendAPIKey != "" {
				mailer = otp.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom)
			} else {
				logger.Warn("No RESEND_API_KEY, OTP codes will be logged instead of emailed")
				mailer = &otp.LogMailer{Logger: logger}
			}
			otpSvc := otp.NewService(ctx, mailer)

			users := directory.NewPGStore(pool.Pool)
			router := api.NewRouter(pool, scheduler, users, otpSvc, cfg)

			addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				logger.Info("Starting nextClass Notification API",
					"addr", addr,
					"environment", cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Server failed", "error", err)
					os.Exit(1)
				}
			}()

			<-ctx.Done()
			logger.Info("Shutting down...")

			// Stop the loop first so no new cycle begins, then drain HTTP.
			scheduler.Stop()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown error", "error", err)
			}
			logger.Info("Server stopped")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// check command
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single matching/dispatch cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			pool, err := db.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			scheduler, ledger, err := buildEngine(ctx, cfg, pool)
			if err != nil {
				return err
			}
			if c, ok := ledger.(interface{ Close() error }); ok {
				defer c.Close()
			}

			start := time.Now()
			if err := scheduler.Trigger(); err != nil {
				return fmt.Errorf("run cycle: %w", err)
			}
			status := scheduler.Status()
			logger.Info("Cycle finished",
				"duration", time.Since(start).Round(time.Millisecond),
				"matches", status.LastMatchCount,
				"sent", status.LastSentCount,
				"errors", status.LastErrorCount)
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// engine wiring shared by serve and check
// --------------------------------------------------------------------------

func buildEngine(ctx context.Context, cfg *config.Config, pool *db.Pool) (*notify.Scheduler, notify.SentLedger, error) {
	users := directory.NewPGStore(pool.Pool)
	slots := timetable.NewPGStore(pool.Pool, logger)

	var ledger notify.SentLedger
	if cfg.RedisAddr != "" {
		rl, err := notify.NewRedisLedger(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("Using Redis sent-ledger", "addr", cfg.RedisAddr)
		ledger = rl
	} else {
		logger.Info("Using in-memory sent-ledger (REDIS_ADDR not set)")
		ledger = notify.NewMemoryLedger()
	}

	var sender notify.Sender
	if cfg.PushConfigured() {
		fcm, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile, cfg.FCMCredentialsJSON, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init FCM: %w", err)
		}
		logger.Info("FCM sender initialized")
		sender = fcm
	} else {
		logger.Warn("No Firebase credentials, notifications will be logged instead of sent")
		sender = notify.NewLogSender(logger)
	}

	dispatcher := notify.NewDispatcher(sender, users, cfg.DispatchWorkers, cfg.SendRatePerSecond, logger)
	scheduler := notify.NewScheduler(users, slots, ledger, dispatcher, notify.MatchOptions{
		DefaultLeadMinutes: cfg.LookaheadMinutes,
		ToleranceMinutes:   cfg.MatchTolerance,
		Location:           cfg.Location(),
	}, cfg.CycleInterval, logger)

	return scheduler, ledger, nil
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/loantracker/backend/internal/config"
	"github.com/loantracker/backend/internal/db"
	loandomain "github.com/loantracker/backend/internal/domain/loan"
	"github.com/loantracker/backend/internal/jobs"
	"github.com/loantracker/backend/internal/notify"
	"github.com/loantracker/backend/internal/observability"
	postgresrepo "github.com/loantracker/backend/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	loanService := loandomain.NewService(postgresrepo.NewLoanRepository(pool), nil, cfg.DueSoonThresholdDays)

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		})
	}

	worker := jobs.NewReminderWorker(loanService, sender, nil, logger, cfg.DueSoonThresholdDays, cfg.ReminderBatchSize)

	interval := cfg.ReminderInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("reminder worker started", "interval", interval.String(), "batch_size", cfg.ReminderBatchSize)
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("reminder worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 2*time.Minute)
			_, err := worker.RunOnce(runCtx)
			runCancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("reminder run failed", "err", err)
			}
		}
	}
}

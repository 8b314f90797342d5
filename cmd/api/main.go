package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/loantracker/backend/internal/auth"
	"github.com/loantracker/backend/internal/config"
	"github.com/loantracker/backend/internal/db"
	admindomain "github.com/loantracker/backend/internal/domain/admin"
	loandomain "github.com/loantracker/backend/internal/domain/loan"
	"github.com/loantracker/backend/internal/http/handlers"
	"github.com/loantracker/backend/internal/jobs"
	"github.com/loantracker/backend/internal/notify"
	"github.com/loantracker/backend/internal/observability"
	postgresrepo "github.com/loantracker/backend/internal/repository/postgres"
	"github.com/loantracker/backend/internal/server"
	"github.com/loantracker/backend/internal/ws"
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

	hub := ws.NewHub()

	authRepo := db.NewAuthRepository(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)
	authService := auth.NewService(authRepo, jwtManager, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.MaxLoginFailures, cfg.LockoutDuration)
	authHandler := handlers.NewAuthHandler(authService, auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	loanService := loandomain.NewService(postgresrepo.NewLoanRepository(pool), hub, cfg.DueSoonThresholdDays)
	loanHandler := handlers.NewLoanHandler(loanService)

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		})
	}
	reminderWorker := jobs.NewReminderWorker(loanService, sender, hub, logger, cfg.DueSoonThresholdDays, cfg.ReminderBatchSize)

	adminService := admindomain.NewService(authRepo, postgresrepo.NewAuditRepository(pool))
	adminHandler := handlers.NewAdminHandler(adminService, reminderWorker)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:       pool,
		AuthHandler:  authHandler,
		LoanHandler:  loanHandler,
		AdminHandler: adminHandler,
		WSHandler:    ws.NewHandler(hub),
		JWTManager:   jwtManager,
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("api server stopped")
}

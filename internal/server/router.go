package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loantracker/backend/internal/auth"
	"github.com/loantracker/backend/internal/config"
	"github.com/loantracker/backend/internal/http/handlers"
	"github.com/loantracker/backend/internal/http/middleware"
	"github.com/loantracker/backend/internal/version"
	"github.com/loantracker/backend/internal/ws"
)

const maxRequestBodyBytes = 10 << 20

type Dependencies struct {
	Pinger       handlers.Pinger
	AuthHandler  *handlers.AuthHandler
	LoanHandler  *handlers.LoanHandler
	AdminHandler *handlers.AdminHandler
	WSHandler    *ws.Handler
	JWTManager   *auth.JWTManager
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestBodyLimit(maxRequestBodyBytes))
	r.Use(func(c *gin.Context) {
		logger.Info("request", "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Next()
	})

	health := handlers.NewHealthHandler(deps.Pinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.AuthHandler != nil && deps.JWTManager != nil {
		authGroup := r.Group("/v1/auth")
		authGroup.POST("/register", deps.AuthHandler.Register)
		authGroup.POST("/login", deps.AuthHandler.Login)
		authGroup.POST("/refresh", deps.AuthHandler.Refresh)
		authGroup.POST("/logout", deps.AuthHandler.Logout)

		protected := authGroup.Group("")
		protected.Use(middleware.RequireAuth(deps.JWTManager))
		protected.GET("/me", deps.AuthHandler.Me)

		if deps.LoanHandler != nil {
			loanGroup := r.Group("/v1")
			loanGroup.Use(middleware.RequireAuth(deps.JWTManager), middleware.RequireRole(auth.RoleUser, auth.RoleAdmin))
			loanGroup.POST("/loans", deps.LoanHandler.CreateLoan)
			loanGroup.GET("/loans", deps.LoanHandler.ListLoans)
			loanGroup.GET("/loans/statistics", deps.LoanHandler.GetStatistics)
			loanGroup.POST("/loans/import", deps.LoanHandler.ImportLoans)
			loanGroup.GET("/loans/:loanId", deps.LoanHandler.GetLoan)
			loanGroup.PUT("/loans/:loanId", deps.LoanHandler.UpdateLoan)
			loanGroup.POST("/loans/:loanId/extend", deps.LoanHandler.ExtendDueDate)
			loanGroup.POST("/loans/:loanId/interest", deps.LoanHandler.UpdateInterest)
			loanGroup.POST("/loans/:loanId/complete", deps.LoanHandler.MarkCompleted)
			loanGroup.DELETE("/loans/:loanId", deps.LoanHandler.DeleteLoan)
		}

		if deps.WSHandler != nil {
			wsGroup := r.Group("/v1")
			wsGroup.Use(middleware.RequireAuth(deps.JWTManager))
			wsGroup.GET("/ws", deps.WSHandler.HandleWebSocket)
		}

		if deps.AdminHandler != nil {
			adminGroup := r.Group("/admin")
			adminGroup.Use(middleware.RequireAuth(deps.JWTManager), middleware.RequireRole(auth.RoleAdmin))
			adminGroup.GET("/users", deps.AdminHandler.ListUsers)
			adminGroup.POST("/users/:userId/role", deps.AdminHandler.ChangeRole)
			adminGroup.POST("/users/:userId/lock", deps.AdminHandler.LockUser)
			adminGroup.POST("/users/:userId/unlock", deps.AdminHandler.UnlockUser)
			adminGroup.POST("/reminders/run", deps.AdminHandler.RunReminders)
			adminGroup.GET("/system/health", deps.AdminHandler.SystemHealth)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loantracker/backend/internal/db"
	"github.com/loantracker/backend/internal/http/respond"
	"github.com/loantracker/backend/internal/jobs"
)

type AdminService interface {
	ListUsers(ctx context.Context, limit, offset int32) ([]db.User, error)
	ChangeRole(ctx context.Context, adminUserID, userID, role string) error
	LockUser(ctx context.Context, adminUserID, userID string, d time.Duration) error
	UnlockUser(ctx context.Context, adminUserID, userID string) error
}

type ReminderRunner interface {
	RunOnce(ctx context.Context) (*jobs.RunResult, error)
}

type AdminHandler struct {
	adminService AdminService
	reminders    ReminderRunner
}

func NewAdminHandler(adminService AdminService, reminders ReminderRunner) *AdminHandler {
	return &AdminHandler{adminService: adminService, reminders: reminders}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("limit", "50")), 10, 32)
	offset, _ := strconv.ParseInt(strings.TrimSpace(c.DefaultQuery("offset", "0")), 10, 32)

	users, err := h.adminService.ListUsers(c.Request.Context(), int32(limit), int32(offset))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":            u.ID,
			"name":          u.Name,
			"email":         u.Email,
			"role":          u.Role,
			"failed_logins": u.FailedLogins,
			"locked_until":  u.LockedUntil,
			"created_at":    u.CreatedAt,
		})
	}
	respond.JSON(c, http.StatusOK, "users retrieved", out)
}

type changeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *AdminHandler) ChangeRole(c *gin.Context) {
	adminID, _ := callerIdentity(c)
	userID := strings.TrimSpace(c.Param("userId"))

	var req changeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.adminService.ChangeRole(c.Request.Context(), adminID, userID, req.Role); err != nil {
		respond.Error(c, http.StatusBadRequest, "role change failed")
		return
	}
	respond.JSON(c, http.StatusOK, "role updated", nil)
}

type lockRequest struct {
	Duration string `json:"duration"`
}

func (h *AdminHandler) LockUser(c *gin.Context) {
	adminID, _ := callerIdentity(c)
	userID := strings.TrimSpace(c.Param("userId"))

	var req lockRequest
	_ = c.ShouldBindJSON(&req)
	var d time.Duration
	if strings.TrimSpace(req.Duration) != "" {
		parsed, err := time.ParseDuration(req.Duration)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid duration")
			return
		}
		d = parsed
	}

	if err := h.adminService.LockUser(c.Request.Context(), adminID, userID, d); err != nil {
		respond.Error(c, http.StatusBadRequest, "lock failed")
		return
	}
	respond.JSON(c, http.StatusOK, "user locked", nil)
}

func (h *AdminHandler) UnlockUser(c *gin.Context) {
	adminID, _ := callerIdentity(c)
	userID := strings.TrimSpace(c.Param("userId"))

	if err := h.adminService.UnlockUser(c.Request.Context(), adminID, userID); err != nil {
		respond.Error(c, http.StatusBadRequest, "unlock failed")
		return
	}
	respond.JSON(c, http.StatusOK, "user unlocked", nil)
}

// RunReminders triggers an immediate reminder pass outside the scheduled
// cadence.
func (h *AdminHandler) RunReminders(c *gin.Context) {
	result, err := h.reminders.RunOnce(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "reminder run failed")
		return
	}
	respond.JSON(c, http.StatusOK, "reminders processed", result)
}

func (h *AdminHandler) SystemHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package integration

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loantracker/backend/internal/auth"
	"github.com/loantracker/backend/internal/config"
	"github.com/loantracker/backend/internal/db"
	"github.com/loantracker/backend/internal/http/handlers"
	"github.com/loantracker/backend/internal/jobs"
	"github.com/loantracker/backend/internal/server"
)

type stubAdminService struct {
	roleChanges map[string]string
	locked      map[string]time.Duration
	unlocked    []string
}

func newStubAdminService() *stubAdminService {
	return &stubAdminService{roleChanges: map[string]string{}, locked: map[string]time.Duration{}}
}

func (s *stubAdminService) ListUsers(_ context.Context, _, _ int32) ([]db.User, error) {
	return []db.User{{ID: "u-1", Name: "Ravi", Email: "ravi@example.com", Role: auth.RoleUser}}, nil
}

func (s *stubAdminService) ChangeRole(_ context.Context, _, userID, role string) error {
	s.roleChanges[userID] = role
	return nil
}

func (s *stubAdminService) LockUser(_ context.Context, _, userID string, d time.Duration) error {
	s.locked[userID] = d
	return nil
}

func (s *stubAdminService) UnlockUser(_ context.Context, _, userID string) error {
	s.unlocked = append(s.unlocked, userID)
	return nil
}

type stubReminderRunner struct {
	runs int
}

func (s *stubReminderRunner) RunOnce(_ context.Context) (*jobs.RunResult, error) {
	s.runs++
	return &jobs.RunResult{DueSoonCount: 2, OverdueCount: 1}, nil
}

func newAdminRouter(t *testing.T, adminSvc handlers.AdminService, runner handlers.ReminderRunner) (http.Handler, *auth.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtManager := auth.NewJWTManager("loantracker", "loantracker-api", "test-signing-key")
	authSvc := auth.NewService(newFakeAuthRepo(), jwtManager, 15*time.Minute, 24*time.Hour, 5, 15*time.Minute)
	authHandler := handlers.NewAuthHandler(authSvc, auth.CookieConfig{}, 15*time.Minute, 24*time.Hour)

	r := server.NewRouter(config.Config{Env: "test"}, slog.Default(), server.Dependencies{
		Pinger:       fakePinger{},
		AuthHandler:  authHandler,
		AdminHandler: handlers.NewAdminHandler(adminSvc, runner),
		JWTManager:   jwtManager,
	})
	return r, jwtManager
}

func TestAdminRoutesForbiddenForUsers(t *testing.T) {
	r, jwtManager := newAdminRouter(t, newStubAdminService(), &stubReminderRunner{})

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(accessCookie(t, jwtManager, "u-1", auth.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAdminListUsers(t *testing.T) {
	r, jwtManager := newAdminRouter(t, newStubAdminService(), &stubReminderRunner{})

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(accessCookie(t, jwtManager, "admin-1", auth.RoleAdmin))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestAdminChangeRoleAndLock(t *testing.T) {
	svc := newStubAdminService()
	r, jwtManager := newAdminRouter(t, svc, &stubReminderRunner{})
	cookie := accessCookie(t, jwtManager, "admin-1", auth.RoleAdmin)

	w := postJSON(t, r, "/admin/users/u-1/role", map[string]string{"role": "admin"}, []*http.Cookie{cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("role: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if svc.roleChanges["u-1"] != "admin" {
		t.Fatalf("expected role change recorded, got %+v", svc.roleChanges)
	}

	w = postJSON(t, r, "/admin/users/u-1/lock", map[string]string{"duration": "30m"}, []*http.Cookie{cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("lock: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if svc.locked["u-1"] != 30*time.Minute {
		t.Fatalf("expected 30m lock, got %v", svc.locked["u-1"])
	}

	w = postJSON(t, r, "/admin/users/u-1/lock", map[string]string{"duration": "soon"}, []*http.Cookie{cookie})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad duration, got %d", w.Code)
	}
}

func TestAdminRunReminders(t *testing.T) {
	runner := &stubReminderRunner{}
	r, jwtManager := newAdminRouter(t, newStubAdminService(), runner)

	w := postJSON(t, r, "/admin/reminders/run", nil, []*http.Cookie{accessCookie(t, jwtManager, "admin-1", auth.RoleAdmin)})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if runner.runs != 1 {
		t.Fatalf("expected one run, got %d", runner.runs)
	}
}

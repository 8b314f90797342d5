package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loantracker/backend/internal/auth"
	"github.com/loantracker/backend/internal/config"
	"github.com/loantracker/backend/internal/db"
	"github.com/loantracker/backend/internal/http/handlers"
	"github.com/loantracker/backend/internal/server"
)

type fakeAuthRepo struct {
	users    map[string]*db.User
	sessions map[string]*db.Session
	nextID   int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: map[string]*db.User{}, sessions: map[string]*db.Session{}}
}

func (r *fakeAuthRepo) CreateUser(_ context.Context, name, email, passwordHash, role string) (*db.User, error) {
	r.nextID++
	u := &db.User{ID: "u-" + strconv.Itoa(r.nextID), Name: name, Email: email, PasswordHash: passwordHash, Role: role}
	r.users[email] = u
	return u, nil
}

func (r *fakeAuthRepo) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, context.Canceled
}

func (r *fakeAuthRepo) GetUserByID(_ context.Context, userID string) (*db.User, error) {
	for _, u := range r.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, context.Canceled
}

func (r *fakeAuthRepo) RecordLoginFailure(_ context.Context, userID string, lockUntil *time.Time) error {
	for _, u := range r.users {
		if u.ID == userID {
			u.FailedLogins++
			if lockUntil != nil {
				u.LockedUntil = lockUntil
			}
		}
	}
	return nil
}

func (r *fakeAuthRepo) ResetLoginFailures(_ context.Context, userID string) error {
	for _, u := range r.users {
		if u.ID == userID {
			u.FailedLogins = 0
			u.LockedUntil = nil
		}
	}
	return nil
}

func (r *fakeAuthRepo) CreateSession(_ context.Context, userID, refreshHash, userAgent, ipAddress string, expiresAt time.Time) (*db.Session, error) {
	r.nextID++
	s := &db.Session{ID: "s-" + strconv.Itoa(r.nextID), UserID: userID, RefreshTokenHash: refreshHash, UserAgent: userAgent, IPAddress: ipAddress, ExpiresAt: expiresAt}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *fakeAuthRepo) GetSessionByID(_ context.Context, sessionID string) (*db.Session, error) {
	if s, ok := r.sessions[sessionID]; ok {
		return s, nil
	}
	return nil, context.Canceled
}

func (r *fakeAuthRepo) RevokeSession(_ context.Context, sessionID string) error {
	if s, ok := r.sessions[sessionID]; ok {
		now := time.Now().UTC()
		s.RevokedAt = &now
	}
	return nil
}

func (r *fakeAuthRepo) UpdateSessionRefreshHash(_ context.Context, sessionID, refreshHash string) error {
	if s, ok := r.sessions[sessionID]; ok {
		s.RefreshTokenHash = refreshHash
	}
	return nil
}

func newAuthRouter(t *testing.T) (http.Handler, *fakeAuthRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newFakeAuthRepo()
	jwtManager := auth.NewJWTManager("loantracker", "loantracker-api", "test-signing-key")
	svc := auth.NewService(repo, jwtManager, 15*time.Minute, 24*time.Hour, 5, 15*time.Minute)
	h := handlers.NewAuthHandler(svc, auth.CookieConfig{}, 15*time.Minute, 24*time.Hour)

	r := server.NewRouter(config.Config{Env: "test"}, slog.Default(), server.Dependencies{
		Pinger:      fakePinger{},
		AuthHandler: h,
		JWTManager:  jwtManager,
	})
	return r, repo
}

func postJSON(t *testing.T, r http.Handler, path string, payload any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginAndMe(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(t, r, "/v1/auth/register", map[string]string{
		"name": "Ravi Kumar", "email": "ravi@example.com", "password": "correct-horse",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/v1/auth/login", map[string]string{
		"email": "ravi@example.com", "password": "correct-horse",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) < 2 {
		t.Fatalf("expected auth cookies to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d (%s)", me.Code, me.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r, _ := newAuthRouter(t)

	w := postJSON(t, r, "/v1/auth/register", map[string]string{
		"name": "Ravi", "email": "ravi@example.com", "password": "correct-horse",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", w.Code)
	}

	w = postJSON(t, r, "/v1/auth/login", map[string]string{
		"email": "ravi@example.com", "password": "wrong",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMeRequiresAuth(t *testing.T) {
	r, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	r, repo := newAuthRouter(t)

	postJSON(t, r, "/v1/auth/register", map[string]string{
		"name": "Ravi", "email": "ravi@example.com", "password": "correct-horse",
	}, nil)
	login := postJSON(t, r, "/v1/auth/login", map[string]string{
		"email": "ravi@example.com", "password": "correct-horse",
	}, nil)
	cookies := login.Result().Cookies()

	w := postJSON(t, r, "/v1/auth/refresh", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	// The original session is revoked once its refresh token is consumed.
	revoked := 0
	for _, s := range repo.sessions {
		if s.RevokedAt != nil {
			revoked++
		}
	}
	if revoked != 1 {
		t.Fatalf("expected one revoked session, got %d", revoked)
	}

	// Replaying the old refresh cookie fails.
	w = postJSON(t, r, "/v1/auth/refresh", nil, cookies)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", w.Code)
	}
}

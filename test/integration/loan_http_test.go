package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loantracker/backend/internal/auth"
	"github.com/loantracker/backend/internal/config"
	loandomain "github.com/loantracker/backend/internal/domain/loan"
	"github.com/loantracker/backend/internal/http/handlers"
	"github.com/loantracker/backend/internal/server"
	"github.com/shopspring/decimal"
)

type stubLoanService struct {
	loans  map[string]*loandomain.Entity
	nextID int
}

func newStubLoanService() *stubLoanService {
	return &stubLoanService{loans: map[string]*loandomain.Entity{}}
}

func (s *stubLoanService) add(ownerID string) *loandomain.Entity {
	s.nextID++
	e := &loandomain.Entity{
		ID:             "loan-" + strconv.Itoa(s.nextID),
		CreatedBy:      ownerID,
		BorrowerName:   "Ravi Kumar",
		LoanAmount:     decimal.NewFromInt(5000),
		InterestAmount: decimal.NewFromInt(250),
		DueDate:        time.Now().UTC().AddDate(0, 0, 5),
		Status:         loandomain.StatusActive,
		CurrentStatus:  loandomain.StatusActive,
	}
	s.loans[e.ID] = e
	return e
}

func (s *stubLoanService) Create(_ context.Context, in loandomain.CreateInput) (*loandomain.Entity, error) {
	e := s.add(in.CreatedBy)
	e.BorrowerName = in.BorrowerName
	e.LoanAmount = in.LoanAmount
	e.DueDate = in.DueDate
	return e, nil
}

func (s *stubLoanService) Get(_ context.Context, loanID string) (*loandomain.Entity, error) {
	if e, ok := s.loans[loanID]; ok {
		return e, nil
	}
	return nil, loandomain.ErrNotFound
}

func (s *stubLoanService) List(_ context.Context, f loandomain.ListFilter) ([]loandomain.Entity, int64, error) {
	out := make([]loandomain.Entity, 0)
	for _, e := range s.loans {
		if f.OwnerID == "" || e.CreatedBy == f.OwnerID {
			out = append(out, *e)
		}
	}
	return out, int64(len(out)), nil
}

func (s *stubLoanService) Update(_ context.Context, loanID string, _ loandomain.UpdateInput) (*loandomain.Entity, error) {
	return s.Get(context.Background(), loanID)
}

func (s *stubLoanService) ExtendDueDate(_ context.Context, loanID string, newDate time.Time, _ string) (*loandomain.Entity, error) {
	e, ok := s.loans[loanID]
	if !ok {
		return nil, loandomain.ErrNotFound
	}
	e.ExtendedDueDate = &newDate
	return e, nil
}

func (s *stubLoanService) UpdateInterest(_ context.Context, loanID string, additional decimal.Decimal, _ string) (*loandomain.Entity, error) {
	e, ok := s.loans[loanID]
	if !ok {
		return nil, loandomain.ErrNotFound
	}
	e.IncreasedInterest = e.IncreasedInterest.Add(additional)
	return e, nil
}

func (s *stubLoanService) MarkCompleted(_ context.Context, loanID, _ string) (*loandomain.Entity, error) {
	e, ok := s.loans[loanID]
	if !ok {
		return nil, loandomain.ErrNotFound
	}
	e.Status = loandomain.StatusCompleted
	e.CurrentStatus = loandomain.StatusCompleted
	return e, nil
}

func (s *stubLoanService) SoftDelete(_ context.Context, loanID string) error {
	if _, ok := s.loans[loanID]; !ok {
		return loandomain.ErrNotFound
	}
	delete(s.loans, loanID)
	return nil
}

func (s *stubLoanService) Statistics(_ context.Context, ownerID string) (*loandomain.Statistics, error) {
	items, total, _ := s.List(context.Background(), loandomain.ListFilter{OwnerID: ownerID})
	stats := &loandomain.Statistics{Total: total, ByStatus: map[loandomain.Status]loandomain.StatusBucket{}}
	for _, e := range items {
		stats.TotalAmount = stats.TotalAmount.Add(e.LoanAmount)
	}
	return stats, nil
}

func (s *stubLoanService) ImportCSV(_ context.Context, _ string, _ io.Reader) (*loandomain.ImportResult, error) {
	return &loandomain.ImportResult{LoanIDs: []string{}, Errors: []loandomain.ImportRowError{}}, nil
}

func newLoanRouter(t *testing.T, svc handlers.LoanService) (http.Handler, *auth.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtManager := auth.NewJWTManager("loantracker", "loantracker-api", "test-signing-key")
	authSvc := auth.NewService(newFakeAuthRepo(), jwtManager, 15*time.Minute, 24*time.Hour, 5, 15*time.Minute)
	authHandler := handlers.NewAuthHandler(authSvc, auth.CookieConfig{}, 15*time.Minute, 24*time.Hour)

	r := server.NewRouter(config.Config{Env: "test"}, slog.Default(), server.Dependencies{
		Pinger:      fakePinger{},
		AuthHandler: authHandler,
		LoanHandler: handlers.NewLoanHandler(svc),
		JWTManager:  jwtManager,
	})
	return r, jwtManager
}

func accessCookie(t *testing.T, jwtManager *auth.JWTManager, userID, role string) *http.Cookie {
	t.Helper()
	token, err := jwtManager.Mint(userID, "s-1", role, "access", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return &http.Cookie{Name: auth.AccessCookieName, Value: token}
}

func TestLoanRoutesRequireAuth(t *testing.T) {
	r, _ := newLoanRouter(t, newStubLoanService())

	req := httptest.NewRequest(http.MethodGet, "/v1/loans", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestCreateAndGetLoan(t *testing.T) {
	svc := newStubLoanService()
	r, jwtManager := newLoanRouter(t, svc)
	cookie := accessCookie(t, jwtManager, "u-1", auth.RoleUser)

	w := postJSON(t, r, "/v1/loans", map[string]any{
		"borrower_name":   "Ravi Kumar",
		"loan_amount":     "5000",
		"interest_amount": "250",
		"loan_given_date": "2026-02-01",
		"due_date":        "2026-04-01",
	}, []*http.Cookie{cookie})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/loans/loan-1", nil)
	req.AddCookie(cookie)
	get := httptest.NewRecorder()
	r.ServeHTTP(get, req)
	if get.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d (%s)", get.Code, get.Body.String())
	}
}

func TestCreateLoanRejectsBadDate(t *testing.T) {
	r, jwtManager := newLoanRouter(t, newStubLoanService())
	cookie := accessCookie(t, jwtManager, "u-1", auth.RoleUser)

	w := postJSON(t, r, "/v1/loans", map[string]any{
		"borrower_name":   "Ravi Kumar",
		"loan_given_date": "01/02/2026",
		"due_date":        "2026-04-01",
	}, []*http.Cookie{cookie})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestForeignLoanIsHidden(t *testing.T) {
	svc := newStubLoanService()
	owned := svc.add("u-2")
	r, jwtManager := newLoanRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/loans/"+owned.ID, nil)
	req.AddCookie(accessCookie(t, jwtManager, "u-1", auth.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign loan, got %d", w.Code)
	}

	// Admins can read any loan.
	req = httptest.NewRequest(http.MethodGet, "/v1/loans/"+owned.ID, nil)
	req.AddCookie(accessCookie(t, jwtManager, "admin-1", auth.RoleAdmin))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}

func TestExtendAndCompleteLoan(t *testing.T) {
	svc := newStubLoanService()
	owned := svc.add("u-1")
	r, jwtManager := newLoanRouter(t, svc)
	cookie := accessCookie(t, jwtManager, "u-1", auth.RoleUser)

	w := postJSON(t, r, "/v1/loans/"+owned.ID+"/extend", map[string]string{
		"new_due_date": "2026-05-01",
	}, []*http.Cookie{cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("extend: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if owned.ExtendedDueDate == nil {
		t.Fatal("expected extended due date to be set")
	}

	w = postJSON(t, r, "/v1/loans/"+owned.ID+"/complete", map[string]string{"notes": "repaid"}, []*http.Cookie{cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if owned.Status != loandomain.StatusCompleted {
		t.Fatalf("expected completed, got %s", owned.Status)
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	svc := newStubLoanService()
	svc.add("u-1")
	svc.add("u-1")
	svc.add("u-2")
	r, jwtManager := newLoanRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/loans/statistics", nil)
	req.AddCookie(accessCookie(t, jwtManager, "u-1", auth.RoleUser))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

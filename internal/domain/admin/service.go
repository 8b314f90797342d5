package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/loantracker/backend/internal/auth"
	"github.com/loantracker/backend/internal/db"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*db.User, error)
	ListUsers(ctx context.Context, limit, offset int32) ([]db.User, error)
	UpdateUserRole(ctx context.Context, userID, role string) error
	SetUserLock(ctx context.Context, userID string, lockedUntil *time.Time) error
}

type AuditRepository interface {
	Log(ctx context.Context, in AuditLogInput) error
}

type AuditLogInput struct {
	AdminUserID string
	Action      string
	TargetType  string
	TargetID    string
	Payload     []byte
}

type Service struct {
	userRepo  UserRepository
	auditRepo AuditRepository
	now       func() time.Time
}

func NewService(userRepo UserRepository, auditRepo AuditRepository) *Service {
	return &Service{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int32) ([]db.User, error) {
	return s.userRepo.ListUsers(ctx, limit, offset)
}

func (s *Service) ChangeRole(ctx context.Context, adminUserID, userID, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if role != auth.RoleUser && role != auth.RoleAdmin {
		return fmt.Errorf("invalid_role")
	}
	if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.UpdateUserRole(ctx, userID, role); err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{"role": role})
	_ = s.auditRepo.Log(ctx, AuditLogInput{
		AdminUserID: adminUserID,
		Action:      "user_role_changed",
		TargetType:  "user",
		TargetID:    userID,
		Payload:     payload,
	})
	return nil
}

// LockUser locks the account for the given duration; zero means
// indefinitely (a far-future timestamp).
func (s *Service) LockUser(ctx context.Context, adminUserID, userID string, d time.Duration) error {
	if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	until := s.now().Add(d)
	if d <= 0 {
		until = s.now().AddDate(100, 0, 0)
	}
	if err := s.userRepo.SetUserLock(ctx, userID, &until); err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{"locked_until": until.Format(time.RFC3339)})
	_ = s.auditRepo.Log(ctx, AuditLogInput{
		AdminUserID: adminUserID,
		Action:      "user_locked",
		TargetType:  "user",
		TargetID:    userID,
		Payload:     payload,
	})
	return nil
}

func (s *Service) UnlockUser(ctx context.Context, adminUserID, userID string) error {
	if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.SetUserLock(ctx, userID, nil); err != nil {
		return err
	}
	_ = s.auditRepo.Log(ctx, AuditLogInput{
		AdminUserID: adminUserID,
		Action:      "user_unlocked",
		TargetType:  "user",
		TargetID:    userID,
		Payload:     []byte(`{}`),
	})
	return nil
}

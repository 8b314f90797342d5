package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loantracker/backend/internal/domain/admin"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, in admin.AuditLogInput) error {
	q := `
INSERT INTO audit_log (admin_user_id, action, target_type, target_id, payload)
VALUES ($1, $2, $3, $4, $5)
`
	payload := in.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	_, err := r.pool.Exec(ctx, q, in.AdminUserID, in.Action, in.TargetType, in.TargetID, payload)
	return err
}

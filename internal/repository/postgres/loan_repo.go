package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loantracker/backend/internal/domain/loan"
	"github.com/shopspring/decimal"
)

const loanColumns = `id, created_by, borrower_name, borrower_email, borrower_phone,
       loan_amount, interest_amount, increased_interest,
       loan_given_date, due_date, extended_due_date,
       status, is_deleted, created_at, updated_at`

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

func scanLoan(row pgx.Row) (*loan.Entity, error) {
	out := &loan.Entity{}
	err := row.Scan(
		&out.ID, &out.CreatedBy, &out.BorrowerName, &out.BorrowerEmail, &out.BorrowerPhone,
		&out.LoanAmount, &out.InterestAmount, &out.IncreasedInterest,
		&out.LoanGivenDate, &out.DueDate, &out.ExtendedDueDate,
		&out.Status, &out.IsDeleted, &out.CreatedAt, &out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, loan.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) Create(ctx context.Context, in loan.CreateInput, initialStatus loan.Status, entry loan.HistoryAppend) (*loan.Entity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := `
INSERT INTO loans (
  created_by, borrower_name, borrower_email, borrower_phone,
  loan_amount, interest_amount, loan_given_date, due_date, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING ` + loanColumns
	out, err := scanLoan(tx.QueryRow(ctx, q,
		in.CreatedBy, in.BorrowerName, in.BorrowerEmail, in.BorrowerPhone,
		in.LoanAmount, in.InterestAmount, in.LoanGivenDate, in.DueDate, string(initialStatus),
	))
	if err != nil {
		return nil, err
	}

	if err := appendHistory(ctx, tx, out.ID, entry); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	out.History, err = r.listHistory(ctx, out.ID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	q := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 AND NOT is_deleted`
	out, err := scanLoan(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	out.History, err = r.listHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return out, nil
}

var sortColumns = map[string]string{
	"created_at":    "created_at",
	"due_date":      "COALESCE(extended_due_date, due_date)",
	"borrower_name": "borrower_name",
	"loan_amount":   "loan_amount",
}

func (r *LoanRepository) List(ctx context.Context, f loan.ListFilter) ([]loan.Entity, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := strings.Builder{}
	where.WriteString(" FROM loans WHERE NOT is_deleted")
	args := []any{}
	argPos := 1
	if strings.TrimSpace(f.OwnerID) != "" {
		where.WriteString(" AND created_by = $")
		where.WriteString(strconv.Itoa(argPos))
		args = append(args, f.OwnerID)
		argPos++
	}
	if f.Status != "" {
		where.WriteString(" AND status = $")
		where.WriteString(strconv.Itoa(argPos))
		args = append(args, string(f.Status))
		argPos++
	}
	if strings.TrimSpace(f.Search) != "" {
		where.WriteString(" AND borrower_name ILIKE '%' || $")
		where.WriteString(strconv.Itoa(argPos))
		where.WriteString(" || '%'")
		args = append(args, strings.TrimSpace(f.Search))
		argPos++
	}
	if f.DueAfter != nil {
		where.WriteString(" AND COALESCE(extended_due_date, due_date) >= $")
		where.WriteString(strconv.Itoa(argPos))
		args = append(args, *f.DueAfter)
		argPos++
	}
	if f.DueBefore != nil {
		where.WriteString(" AND COALESCE(extended_due_date, due_date) <= $")
		where.WriteString(strconv.Itoa(argPos))
		args = append(args, *f.DueBefore)
		argPos++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*)"+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := sortColumns["created_at"]
	if col, ok := sortColumns[strings.TrimSpace(f.SortBy)]; ok {
		order = col
	}
	dir := " ASC"
	if f.SortDesc || strings.TrimSpace(f.SortBy) == "" {
		dir = " DESC"
	}

	query := strings.Builder{}
	query.WriteString("SELECT " + loanColumns)
	query.WriteString(where.String())
	query.WriteString(" ORDER BY " + order + dir)
	query.WriteString(" LIMIT $")
	query.WriteString(strconv.Itoa(argPos))
	args = append(args, f.Limit)
	argPos++
	query.WriteString(" OFFSET $")
	query.WriteString(strconv.Itoa(argPos))
	args = append(args, f.Offset)

	items, err := r.queryLoans(ctx, query.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ApplyUpdate performs a single-loan atomic update: field changes and the
// history append either both land or neither does. Nil arguments leave the
// corresponding column untouched.
func (r *LoanRepository) ApplyUpdate(ctx context.Context, loanID string, extendedDueDate *time.Time, increasedInterest *decimal.Decimal, borrower *loan.BorrowerPatch, entry loan.HistoryAppend) (*loan.Entity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var name, email, phone *string
	if borrower != nil {
		name, email, phone = borrower.Name, borrower.Email, borrower.Phone
	}

	q := `
UPDATE loans
SET extended_due_date  = COALESCE($2, extended_due_date),
    increased_interest = COALESCE($3, increased_interest),
    borrower_name      = COALESCE($4, borrower_name),
    borrower_email     = COALESCE($5, borrower_email),
    borrower_phone     = COALESCE($6, borrower_phone),
    updated_at         = NOW()
WHERE id = $1 AND NOT is_deleted
RETURNING ` + loanColumns
	out, err := scanLoan(tx.QueryRow(ctx, q, loanID, extendedDueDate, increasedInterest, name, email, phone))
	if err != nil {
		return nil, err
	}

	if entry.ChangeType != "" {
		if err := appendHistory(ctx, tx, loanID, entry); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	out.History, err = r.listHistory(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) SetStatus(ctx context.Context, loanID string, status loan.Status, entry loan.HistoryAppend) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE loans SET status = $2, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`, loanID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return loan.ErrNotFound
	}
	if err := appendHistory(ctx, tx, loanID, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *LoanRepository) SoftDelete(ctx context.Context, loanID string, entry loan.HistoryAppend) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE loans SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`, loanID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return loan.ErrNotFound
	}
	if err := appendHistory(ctx, tx, loanID, entry); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *LoanRepository) Statistics(ctx context.Context, ownerID string) (*loan.Statistics, error) {
	owner := strings.TrimSpace(ownerID)

	qTotals := `
SELECT
  COUNT(*)::bigint,
  COALESCE(SUM(loan_amount), 0),
  COALESCE(SUM(interest_amount + increased_interest), 0)
FROM loans
WHERE NOT is_deleted AND ($1 = '' OR created_by::text = $1)
`
	out := &loan.Statistics{ByStatus: map[loan.Status]loan.StatusBucket{}}
	if err := r.pool.QueryRow(ctx, qTotals, owner).Scan(&out.Total, &out.TotalAmount, &out.TotalInterest); err != nil {
		return nil, err
	}

	qByStatus := `
SELECT
  status,
  COUNT(*)::bigint,
  COALESCE(SUM(loan_amount), 0),
  COALESCE(SUM(interest_amount + increased_interest), 0)
FROM loans
WHERE NOT is_deleted AND ($1 = '' OR created_by::text = $1)
GROUP BY status
`
	rows, err := r.pool.Query(ctx, qByStatus, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var bucket loan.StatusBucket
		if err := rows.Scan(&status, &bucket.Count, &bucket.TotalAmount, &bucket.TotalInterest); err != nil {
			return nil, err
		}
		out.ByStatus[loan.Status(status)] = bucket
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindDueBetween selects non-deleted, non-completed loans whose effective
// due date falls in [from, to]. The effective date is expressed as two
// alternatives because the COALESCE cannot use the partial due-date index.
func (r *LoanRepository) FindDueBetween(ctx context.Context, from, to time.Time, limit int32) ([]loan.Entity, error) {
	q := `
SELECT ` + loanColumns + `
FROM loans
WHERE NOT is_deleted AND status != 'completed'
  AND (
    (extended_due_date IS NOT NULL AND extended_due_date >= $1 AND extended_due_date <= $2)
    OR (extended_due_date IS NULL AND due_date >= $1 AND due_date <= $2)
  )
ORDER BY COALESCE(extended_due_date, due_date) ASC
`
	return r.queryWindow(ctx, q, limit, from, to)
}

func (r *LoanRepository) FindOverdue(ctx context.Context, before time.Time, limit int32) ([]loan.Entity, error) {
	q := `
SELECT ` + loanColumns + `
FROM loans
WHERE NOT is_deleted AND status != 'completed'
  AND (
    (extended_due_date IS NOT NULL AND extended_due_date < $1)
    OR (extended_due_date IS NULL AND due_date < $1)
  )
ORDER BY COALESCE(extended_due_date, due_date) ASC
`
	return r.queryWindow(ctx, q, limit, before)
}

func (r *LoanRepository) queryWindow(ctx context.Context, q string, limit int32, args ...any) ([]loan.Entity, error) {
	if limit > 0 {
		q += " LIMIT $" + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}
	return r.queryLoans(ctx, q, args...)
}

func (r *LoanRepository) queryLoans(ctx context.Context, q string, args ...any) ([]loan.Entity, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Entity, 0)
	for rows.Next() {
		var item loan.Entity
		if err := rows.Scan(
			&item.ID, &item.CreatedBy, &item.BorrowerName, &item.BorrowerEmail, &item.BorrowerPhone,
			&item.LoanAmount, &item.InterestAmount, &item.IncreasedInterest,
			&item.LoanGivenDate, &item.DueDate, &item.ExtendedDueDate,
			&item.Status, &item.IsDeleted, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) listHistory(ctx context.Context, loanID string) ([]loan.HistoryEntry, error) {
	q := `
SELECT id, loan_id, change_type, prev_due_date, new_due_date, prev_interest, new_interest, notes, updated_at
FROM loan_history
WHERE loan_id = $1
ORDER BY id ASC
`
	rows, err := r.pool.Query(ctx, q, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.HistoryEntry, 0)
	for rows.Next() {
		var h loan.HistoryEntry
		if err := rows.Scan(&h.ID, &h.LoanID, &h.ChangeType, &h.PrevDueDate, &h.NewDueDate, &h.PrevInterest, &h.NewInterest, &h.Notes, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func appendHistory(ctx context.Context, tx pgx.Tx, loanID string, entry loan.HistoryAppend) error {
	q := `
INSERT INTO loan_history (loan_id, change_type, prev_due_date, new_due_date, prev_interest, new_interest, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := tx.Exec(ctx, q, loanID, string(entry.ChangeType), entry.PrevDueDate, entry.NewDueDate, entry.PrevInterest, entry.NewInterest, entry.Notes)
	return err
}

package loan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusDueSoon   Status = "due_soon"
	StatusOverdue   Status = "overdue"
	StatusCompleted Status = "completed"
)

type ChangeType string

const (
	ChangeInitial      ChangeType = "initial"
	ChangeDueDateExt   ChangeType = "due_date_extension"
	ChangeInterest     ChangeType = "interest_update"
	ChangeBoth         ChangeType = "both"
	ChangeStatusChange ChangeType = "status_change"
)

type Entity struct {
	ID                string          `json:"id"`
	CreatedBy         string          `json:"created_by"`
	BorrowerName      string          `json:"borrower_name"`
	BorrowerEmail     string          `json:"borrower_email"`
	BorrowerPhone     string          `json:"borrower_phone"`
	LoanAmount        decimal.Decimal `json:"loan_amount"`
	InterestAmount    decimal.Decimal `json:"interest_amount"`
	IncreasedInterest decimal.Decimal `json:"increased_interest"`
	LoanGivenDate     time.Time       `json:"loan_given_date"`
	DueDate           time.Time       `json:"due_date"`
	ExtendedDueDate   *time.Time      `json:"extended_due_date,omitempty"`
	Status            Status          `json:"status"`
	IsDeleted         bool            `json:"-"`
	History           []HistoryEntry  `json:"history,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	// Derived on read, never persisted.
	CurrentStatus Status `json:"current_status,omitempty"`
	DaysRemaining int    `json:"days_remaining"`
}

// EffectiveDueDate returns the extended due date when set, otherwise the
// original due date.
func (e *Entity) EffectiveDueDate() time.Time {
	if e.ExtendedDueDate != nil {
		return *e.ExtendedDueDate
	}
	return e.DueDate
}

// TotalInterest is the original interest plus all accumulated increases.
func (e *Entity) TotalInterest() decimal.Decimal {
	return e.InterestAmount.Add(e.IncreasedInterest)
}

type HistoryEntry struct {
	ID           int64            `json:"id"`
	LoanID       string           `json:"loan_id"`
	ChangeType   ChangeType       `json:"change_type"`
	PrevDueDate  *time.Time       `json:"prev_due_date,omitempty"`
	NewDueDate   *time.Time       `json:"new_due_date,omitempty"`
	PrevInterest *decimal.Decimal `json:"prev_interest,omitempty"`
	NewInterest  *decimal.Decimal `json:"new_interest,omitempty"`
	Notes        string           `json:"notes"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type CreateInput struct {
	CreatedBy      string
	BorrowerName   string
	BorrowerEmail  string
	BorrowerPhone  string
	LoanAmount     decimal.Decimal
	InterestAmount decimal.Decimal
	LoanGivenDate  time.Time
	DueDate        time.Time
	Notes          string
}

type UpdateInput struct {
	BorrowerName       *string
	BorrowerEmail      *string
	BorrowerPhone      *string
	NewDueDate         *time.Time
	AdditionalInterest *decimal.Decimal
	Notes              string
}

type ListFilter struct {
	OwnerID   string
	Status    Status
	Search    string
	DueAfter  *time.Time
	DueBefore *time.Time
	SortBy    string
	SortDesc  bool
	Limit     int32
	Offset    int32
}

type StatusBucket struct {
	Count         int64           `json:"count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalInterest decimal.Decimal `json:"total_interest"`
}

type Statistics struct {
	Total         int64                   `json:"total"`
	TotalAmount   decimal.Decimal         `json:"total_amount"`
	TotalInterest decimal.Decimal         `json:"total_interest"`
	ByStatus      map[Status]StatusBucket `json:"by_status"`
	DueSoonCount  int64                   `json:"due_soon_count"`
	OverdueCount  int64                   `json:"overdue_count"`
}

type HistoryAppend struct {
	ChangeType   ChangeType
	PrevDueDate  *time.Time
	NewDueDate   *time.Time
	PrevInterest *decimal.Decimal
	NewInterest  *decimal.Decimal
	Notes        string
}

type Repository interface {
	Create(ctx context.Context, in CreateInput, initialStatus Status, entry HistoryAppend) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, int64, error)
	ApplyUpdate(ctx context.Context, loanID string, extendedDueDate *time.Time, increasedInterest *decimal.Decimal, borrower *BorrowerPatch, entry HistoryAppend) (*Entity, error)
	SetStatus(ctx context.Context, loanID string, status Status, entry HistoryAppend) error
	SoftDelete(ctx context.Context, loanID string, entry HistoryAppend) error
	Statistics(ctx context.Context, ownerID string) (*Statistics, error)
	FindDueBetween(ctx context.Context, from, to time.Time, limit int32) ([]Entity, error)
	FindOverdue(ctx context.Context, before time.Time, limit int32) ([]Entity, error)
}

type BorrowerPatch struct {
	Name  *string
	Email *string
	Phone *string
}

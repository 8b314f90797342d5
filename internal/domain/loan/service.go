package loan

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EventPublisher interface {
	Publish(channel string, payload []byte)
}

type Service struct {
	repo      Repository
	events    EventPublisher
	threshold int
	now       func() time.Time
}

func NewService(repo Repository, events EventPublisher, dueSoonThreshold int) *Service {
	if dueSoonThreshold <= 0 {
		dueSoonThreshold = DefaultDueSoonThreshold
	}
	return &Service{
		repo:      repo,
		events:    events,
		threshold: dueSoonThreshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Entity, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	seed := &Entity{DueDate: in.DueDate}
	initialStatus, _ := Classify(seed, s.now(), s.threshold)

	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		notes = "loan created"
	}
	created, err := s.repo.Create(ctx, in, initialStatus, HistoryAppend{
		ChangeType: ChangeInitial,
		Notes:      notes,
	})
	if err != nil {
		return nil, err
	}
	s.decorate(created)
	s.publishEvent("loan_created", created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, loanID string) (*Entity, error) {
	e, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	s.decorate(e)
	return e, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Entity, int64, error) {
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	ClassifyAll(items, s.now(), s.threshold)
	return items, total, nil
}

// ExtendDueDate moves the effective deadline strictly forward and records
// the extension in the history log. The field update and the history
// append happen in one transaction.
func (s *Service) ExtendDueDate(ctx context.Context, loanID string, newDate time.Time, notes string) (*Entity, error) {
	current, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCompleted {
		return nil, invalid("status", "completed loans cannot be extended")
	}

	prev := current.EffectiveDueDate()
	if !StartOfDay(newDate).After(StartOfDay(prev)) {
		return nil, invalid("new_due_date", "extension must be later than the current due date")
	}

	updated, err := s.repo.ApplyUpdate(ctx, loanID, &newDate, nil, nil, HistoryAppend{
		ChangeType:  ChangeDueDateExt,
		PrevDueDate: &prev,
		NewDueDate:  &newDate,
		Notes:       strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, err
	}
	s.decorate(updated)
	s.publishEvent("due_date_extended", updated)
	return updated, nil
}

// UpdateInterest adds a non-negative amount to the accumulated interest
// increase. History records the total interest before and after.
func (s *Service) UpdateInterest(ctx context.Context, loanID string, additional decimal.Decimal, notes string) (*Entity, error) {
	if additional.IsNegative() {
		return nil, invalid("additional_interest", "must not be negative")
	}

	current, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	prevTotal := current.TotalInterest()
	newIncreased := current.IncreasedInterest.Add(additional)
	newTotal := current.InterestAmount.Add(newIncreased)

	updated, err := s.repo.ApplyUpdate(ctx, loanID, nil, &newIncreased, nil, HistoryAppend{
		ChangeType:   ChangeInterest,
		PrevInterest: &prevTotal,
		NewInterest:  &newTotal,
		Notes:        strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, err
	}
	s.decorate(updated)
	s.publishEvent("interest_updated", updated)
	return updated, nil
}

// Update applies a general edit: borrower contact fields, an optional
// forward extension and an optional interest increase in one atomic
// operation. When both the due date and the interest change, a single
// history entry of type both is recorded.
func (s *Service) Update(ctx context.Context, loanID string, in UpdateInput) (*Entity, error) {
	current, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}

	entry := HistoryAppend{Notes: strings.TrimSpace(in.Notes)}
	var newIncreased *decimal.Decimal

	if in.NewDueDate != nil {
		if current.Status == StatusCompleted {
			return nil, invalid("status", "completed loans cannot be extended")
		}
		prev := current.EffectiveDueDate()
		if !StartOfDay(*in.NewDueDate).After(StartOfDay(prev)) {
			return nil, invalid("new_due_date", "extension must be later than the current due date")
		}
		entry.ChangeType = ChangeDueDateExt
		entry.PrevDueDate = &prev
		entry.NewDueDate = in.NewDueDate
	}

	if in.AdditionalInterest != nil {
		if in.AdditionalInterest.IsNegative() {
			return nil, invalid("additional_interest", "must not be negative")
		}
		prevTotal := current.TotalInterest()
		increased := current.IncreasedInterest.Add(*in.AdditionalInterest)
		newTotal := current.InterestAmount.Add(increased)
		newIncreased = &increased
		entry.PrevInterest = &prevTotal
		entry.NewInterest = &newTotal
		if entry.ChangeType == ChangeDueDateExt {
			entry.ChangeType = ChangeBoth
		} else {
			entry.ChangeType = ChangeInterest
		}
	}

	patch := &BorrowerPatch{Name: in.BorrowerName, Email: in.BorrowerEmail, Phone: in.BorrowerPhone}
	if in.BorrowerName != nil && strings.TrimSpace(*in.BorrowerName) == "" {
		return nil, invalid("borrower_name", "required")
	}

	if entry.ChangeType == "" && patch.Name == nil && patch.Email == nil && patch.Phone == nil {
		s.decorate(current)
		return current, nil
	}

	updated, err := s.repo.ApplyUpdate(ctx, loanID, in.NewDueDate, newIncreased, patch, entry)
	if err != nil {
		return nil, err
	}
	s.decorate(updated)
	s.publishEvent("loan_updated", updated)
	return updated, nil
}

// MarkCompleted sets the terminal completed status. Completing an already
// completed loan is a no-op and appends nothing.
func (s *Service) MarkCompleted(ctx context.Context, loanID, notes string) (*Entity, error) {
	current, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCompleted {
		s.decorate(current)
		return current, nil
	}

	n := strings.TrimSpace(notes)
	if n == "" {
		n = "marked completed"
	}
	if err := s.repo.SetStatus(ctx, loanID, StatusCompleted, HistoryAppend{
		ChangeType: ChangeStatusChange,
		Notes:      n,
	}); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	s.decorate(updated)
	s.publishEvent("loan_completed", updated)
	return updated, nil
}

// SoftDelete flags the loan as deleted. The record and its history are
// retained; active queries exclude it from then on.
func (s *Service) SoftDelete(ctx context.Context, loanID string) error {
	if _, err := s.repo.GetByID(ctx, loanID); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, loanID, HistoryAppend{
		ChangeType: ChangeStatusChange,
		Notes:      "loan deleted",
	}); err != nil {
		return err
	}
	payload := fmt.Sprintf(`{"event":"loan_deleted","data":{"loan_id":%q}}`, loanID)
	if s.events != nil {
		s.events.Publish("loans:events", []byte(payload))
	}
	return nil
}

func (s *Service) Statistics(ctx context.Context, ownerID string) (*Statistics, error) {
	stats, err := s.repo.Statistics(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	today := StartOfDay(s.now())
	dueSoon, err := s.repo.FindDueBetween(ctx, today, today.AddDate(0, 0, s.threshold), 0)
	if err != nil {
		return nil, err
	}
	overdue, err := s.repo.FindOverdue(ctx, today, 0)
	if err != nil {
		return nil, err
	}
	stats.DueSoonCount = int64(len(dueSoon))
	stats.OverdueCount = int64(len(overdue))
	return stats, nil
}

// FindDueSoon returns non-deleted, non-completed loans whose effective due
// date falls within the next days calendar days, inclusive of today.
func (s *Service) FindDueSoon(ctx context.Context, days int, limit int32) ([]Entity, error) {
	if days <= 0 {
		days = s.threshold
	}
	today := StartOfDay(s.now())
	items, err := s.repo.FindDueBetween(ctx, today, today.AddDate(0, 0, days), limit)
	if err != nil {
		return nil, err
	}
	ClassifyAll(items, s.now(), s.threshold)
	return items, nil
}

// FindOverdue returns non-deleted, non-completed loans whose effective due
// date is before today.
func (s *Service) FindOverdue(ctx context.Context, limit int32) ([]Entity, error) {
	items, err := s.repo.FindOverdue(ctx, StartOfDay(s.now()), limit)
	if err != nil {
		return nil, err
	}
	ClassifyAll(items, s.now(), s.threshold)
	return items, nil
}

func (s *Service) decorate(e *Entity) {
	status, days := Classify(e, s.now(), s.threshold)
	e.CurrentStatus = status
	e.DaysRemaining = days
}

func (s *Service) publishEvent(event string, e *Entity) {
	if s.events == nil {
		return
	}
	payload := fmt.Sprintf(`{"event":%q,"data":{"loan_id":%q,"status":%q,"days_remaining":%d}}`,
		event, e.ID, e.CurrentStatus, e.DaysRemaining)
	s.events.Publish("loans:events", []byte(payload))
}

func validateCreate(in CreateInput) error {
	if strings.TrimSpace(in.BorrowerName) == "" {
		return invalid("borrower_name", "required")
	}
	if strings.TrimSpace(in.CreatedBy) == "" {
		return invalid("created_by", "required")
	}
	if in.LoanAmount.IsNegative() {
		return invalid("loan_amount", "must not be negative")
	}
	if in.InterestAmount.IsNegative() {
		return invalid("interest_amount", "must not be negative")
	}
	if in.LoanGivenDate.IsZero() {
		return invalid("loan_given_date", "required")
	}
	if in.DueDate.IsZero() {
		return invalid("due_date", "required")
	}
	return nil
}

var importHeaders = []string{
	"borrower_name",
	"borrower_email",
	"borrower_phone",
	"loan_amount",
	"interest_amount",
	"loan_given_date",
	"due_date",
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ImportResult struct {
	LoanIDs   []string         `json:"loan_ids"`
	Processed int              `json:"processed"`
	Errors    []ImportRowError `json:"errors"`
}

// ImportCSV bulk-creates loans from a CSV upload. Rows that fail
// validation are reported with their row number; valid rows go through the
// normal Create path so each gets its initial history entry.
func (s *Service) ImportCSV(ctx context.Context, ownerID string, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid_csv")
	}
	if len(rows) < 2 {
		return &ImportResult{LoanIDs: []string{}, Errors: []ImportRowError{{Row: 1, Field: "file", Message: "csv must include header and at least one data row"}}}, nil
	}
	if err := validateImportHeader(rows[0]); err != nil {
		return &ImportResult{LoanIDs: []string{}, Errors: []ImportRowError{{Row: 1, Field: "header", Message: err.Error()}}}, nil
	}

	result := &ImportResult{LoanIDs: []string{}, Errors: []ImportRowError{}}
	for i := 1; i < len(rows); i++ {
		rowNum := i + 1
		in, rowErr := parseImportRow(rows[i], ownerID)
		if rowErr != nil {
			result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Field: rowErr.Field, Message: rowErr.Message})
			continue
		}
		created, err := s.Create(ctx, *in)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				result.Errors = append(result.Errors, ImportRowError{Row: rowNum, Field: ve.Field, Message: ve.Message})
				continue
			}
			return nil, err
		}
		result.LoanIDs = append(result.LoanIDs, created.ID)
		result.Processed++
	}
	return result, nil
}

func validateImportHeader(header []string) error {
	if len(header) < len(importHeaders) {
		return fmt.Errorf("invalid column count")
	}
	for i, expected := range importHeaders {
		if strings.TrimSpace(strings.ToLower(header[i])) != expected {
			return fmt.Errorf("expected header %q at position %d", expected, i+1)
		}
	}
	return nil
}

func parseImportRow(row []string, ownerID string) (*CreateInput, *ValidationError) {
	if len(row) < len(importHeaders) {
		return nil, invalid("row", "invalid column count")
	}

	name := strings.TrimSpace(row[0])
	if name == "" {
		return nil, invalid("borrower_name", "required")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil || amount.IsNegative() {
		return nil, invalid("loan_amount", "must be a non-negative number")
	}
	interest, err := decimal.NewFromString(strings.TrimSpace(row[4]))
	if err != nil || interest.IsNegative() {
		return nil, invalid("interest_amount", "must be a non-negative number")
	}

	givenDate, err := time.Parse("2006-01-02", strings.TrimSpace(row[5]))
	if err != nil {
		return nil, invalid("loan_given_date", "must be YYYY-MM-DD")
	}
	dueDate, err := time.Parse("2006-01-02", strings.TrimSpace(row[6]))
	if err != nil {
		return nil, invalid("due_date", "must be YYYY-MM-DD")
	}

	return &CreateInput{
		CreatedBy:      ownerID,
		BorrowerName:   name,
		BorrowerEmail:  strings.TrimSpace(row[1]),
		BorrowerPhone:  strings.TrimSpace(row[2]),
		LoanAmount:     amount,
		InterestAmount: interest,
		LoanGivenDate:  givenDate,
		DueDate:        dueDate,
	}, nil
}

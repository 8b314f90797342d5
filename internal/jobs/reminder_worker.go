package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/loantracker/backend/internal/domain/loan"
	"github.com/loantracker/backend/internal/notify"
	"github.com/loantracker/backend/internal/ws"
)

type LoanQueries interface {
	FindDueSoon(ctx context.Context, days int, limit int32) ([]loan.Entity, error)
	FindOverdue(ctx context.Context, limit int32) ([]loan.Entity, error)
}

type RunResult struct {
	DueSoonCount int `json:"due_soon_count"`
	OverdueCount int `json:"overdue_count"`
}

// ReminderWorker walks due-soon and overdue loans and sends one
// notification per loan per run. There is no dedup against earlier runs: a
// loan due soon for three consecutive days gets three reminders. Send
// failures are logged and skipped, never retried.
type ReminderWorker struct {
	loans     LoanQueries
	sender    notify.Sender
	hub       *ws.Hub
	logger    *slog.Logger
	threshold int
	batchSize int32
	now       func() time.Time
}

func NewReminderWorker(loans LoanQueries, sender notify.Sender, hub *ws.Hub, logger *slog.Logger, threshold int, batchSize int32) *ReminderWorker {
	if threshold <= 0 {
		threshold = loan.DefaultDueSoonThreshold
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReminderWorker{
		loans:     loans,
		sender:    sender,
		hub:       hub,
		logger:    logger,
		threshold: threshold,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce processes all current reminders and reports how many loans fell
// in each window. Safe to invoke from both the ticker loop and the admin
// endpoint.
func (w *ReminderWorker) RunOnce(ctx context.Context) (*RunResult, error) {
	dueSoon, err := w.loans.FindDueSoon(ctx, w.threshold, w.batchSize)
	if err != nil {
		return nil, err
	}
	overdue, err := w.loans.FindOverdue(ctx, w.batchSize)
	if err != nil {
		return nil, err
	}

	result := &RunResult{DueSoonCount: len(dueSoon), OverdueCount: len(overdue)}

	for i := range dueSoon {
		e := &dueSoon[i]
		w.deliver(ctx, e, notify.DueSoonMessage(e, e.DaysRemaining), "due_soon")
	}
	for i := range overdue {
		e := &overdue[i]
		w.deliver(ctx, e, notify.OverdueMessage(e, -e.DaysRemaining), "overdue")
	}

	w.logger.Info("reminder run complete", "due_soon", result.DueSoonCount, "overdue", result.OverdueCount)
	return result, nil
}

func (w *ReminderWorker) deliver(ctx context.Context, e *loan.Entity, msg notify.Message, kind string) {
	if e.BorrowerEmail != "" {
		if err := w.sender.Send(ctx, msg); err != nil {
			w.logger.Error("reminder send failed", "loan_id", e.ID, "kind", kind, "err", err)
		}
	}

	if w.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"event": "loan_reminder",
		"data": map[string]any{
			"loan_id":        e.ID,
			"borrower_name":  e.BorrowerName,
			"kind":           kind,
			"days_remaining": e.DaysRemaining,
			"due_date":       e.EffectiveDueDate().Format("2006-01-02"),
		},
	})
	w.hub.Publish(ws.ReminderChannel(e.CreatedBy), payload)
}

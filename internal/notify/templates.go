package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/loantracker/backend/internal/domain/loan"
)

var dueSoonTemplate = template.Must(template.New("due_soon").Parse(
	`Hello,

The loan for {{.BorrowerName}} of {{.Amount}} is due {{if eq .Days 0}}today{{else}}in {{.Days}} day{{if ne .Days 1}}s{{end}}{{end}} ({{.DueDate}}).
Total interest to date: {{.TotalInterest}}.

LoanTracker
`))

var overdueTemplate = template.Must(template.New("overdue").Parse(
	`Hello,

The loan for {{.BorrowerName}} of {{.Amount}} was due on {{.DueDate}} and is now {{.Days}} day{{if ne .Days 1}}s{{end}} overdue.
Total interest to date: {{.TotalInterest}}.

LoanTracker
`))

type templateData struct {
	BorrowerName  string
	Amount        string
	TotalInterest string
	DueDate       string
	Days          int
}

// DueSoonMessage renders the reminder for a loan whose effective due date
// is daysRemaining calendar days away.
func DueSoonMessage(e *loan.Entity, daysRemaining int) Message {
	body := render(dueSoonTemplate, e, daysRemaining)
	return Message{
		To:      e.BorrowerEmail,
		Subject: fmt.Sprintf("Loan for %s due soon", e.BorrowerName),
		Body:    body,
	}
}

// OverdueMessage renders the reminder for a loan daysOverdue calendar days
// past its effective due date.
func OverdueMessage(e *loan.Entity, daysOverdue int) Message {
	body := render(overdueTemplate, e, daysOverdue)
	return Message{
		To:      e.BorrowerEmail,
		Subject: fmt.Sprintf("Loan for %s is overdue", e.BorrowerName),
		Body:    body,
	}
}

func render(t *template.Template, e *loan.Entity, days int) string {
	var b strings.Builder
	_ = t.Execute(&b, templateData{
		BorrowerName:  e.BorrowerName,
		Amount:        e.LoanAmount.StringFixed(2),
		TotalInterest: e.TotalInterest().StringFixed(2),
		DueDate:       e.EffectiveDueDate().Format("2006-01-02"),
		Days:          days,
	})
	return b.String()
}

package loan

import "time"

// DefaultDueSoonThreshold is the number of days before the effective due
// date at which a loan flips from active to due_soon.
const DefaultDueSoonThreshold = 2

// StartOfDay normalizes a timestamp to midnight in its own location. All
// day-boundary arithmetic in this package goes through here so the
// calculator, the range queries and the reminder worker agree on what
// "today" means.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysUntil counts whole calendar days from now until due. Both dates are
// reduced to their calendar day in UTC before subtracting, so time-of-day
// and DST offsets cannot shift the count. The result is negative for past
// dates.
func DaysUntil(due, now time.Time) int {
	d0 := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	d1 := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(d1.Sub(d0) / (24 * time.Hour))
}

// Classify derives the display status for a loan from its effective due
// date. A stored completed status is terminal and never reverts based on
// dates. The stored status field is otherwise advisory; read paths call
// this instead of trusting it. Classify never writes.
func Classify(e *Entity, now time.Time, threshold int) (Status, int) {
	days := DaysUntil(e.EffectiveDueDate(), now)
	if e.Status == StatusCompleted {
		return StatusCompleted, days
	}
	switch {
	case days < 0:
		return StatusOverdue, days
	case days <= threshold:
		return StatusDueSoon, days
	default:
		return StatusActive, days
	}
}

// ClassifyAll applies Classify to each loan in place, preserving order.
func ClassifyAll(items []Entity, now time.Time, threshold int) {
	for i := range items {
		status, days := Classify(&items[i], now, threshold)
		items[i].CurrentStatus = status
		items[i].DaysRemaining = days
	}
}

package notify

import (
	"context"
	"log/slog"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single reminder message. Delivery is best effort: the
// reminder worker logs failures and moves on, it never retries.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender is used when no SMTP host is configured. It records the
// message instead of delivering it.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("reminder (not delivered, smtp unconfigured)", "to", msg.To, "subject", msg.Subject)
	return nil
}

package worker

import (
	"context"
	"log/slog"
)

// Email is a rendered notification.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered notifications.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender writes each notification as a structured log line instead of
// delivering it.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	s.logger.InfoContext(ctx, "email notification",
		"to", email.To,
		"subject", email.Subject,
		"body", email.Body,
	)
	return nil
}

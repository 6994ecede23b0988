package mailer

import (
	"context"
	"log/slog"
)

// Log writes every message to a logger instead of sending it. The record
// includes the link, and with it the raw token.
type Log struct {
	cfg    Config
	logger *slog.Logger
}

// NewLog creates a development mailer. A nil logger selects slog.Default().
func NewLog(cfg Config, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{cfg: cfg.withDefaults(), logger: logger}
}

func (l *Log) SendEmailVerification(ctx context.Context, email, rawToken string) error {
	l.log(ctx, l.cfg.verificationMessage(email, rawToken))
	return nil
}

func (l *Log) SendPasswordReset(ctx context.Context, email, rawToken string) error {
	l.log(ctx, l.cfg.resetMessage(email, rawToken))
	return nil
}

func (l *Log) log(ctx context.Context, msg message) {
	l.logger.InfoContext(ctx, "email sent (dev mode)",
		"type", msg.kind,
		"to", msg.to,
		"subject", msg.subject,
		"url", msg.link,
	)
}

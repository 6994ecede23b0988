package mailer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Resend sends messages through the Resend API.
type Resend struct {
	client *resend.Client
	cfg    Config
	logger *slog.Logger
}

// NewResend creates a Resend mailer for apiKey.
func NewResend(apiKey string, cfg Config, logger *slog.Logger) (*Resend, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key required")
	}
	return NewResendWithClient(resend.NewClient(apiKey), cfg, logger)
}

// NewResendWithClient wraps a preconfigured client.
func NewResendWithClient(client *resend.Client, cfg Config, logger *slog.Logger) (*Resend, error) {
	if client == nil {
		return nil, errors.New("resend client required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer From address required")
	}
	if cfg.AppURL == "" {
		return nil, errors.New("mailer AppURL required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resend{client: client, cfg: cfg.withDefaults(), logger: logger}, nil
}

func (r *Resend) SendEmailVerification(ctx context.Context, email, rawToken string) error {
	return r.send(ctx, r.cfg.verificationMessage(email, rawToken))
}

func (r *Resend) SendPasswordReset(ctx context.Context, email, rawToken string) error {
	return r.send(ctx, r.cfg.resetMessage(email, rawToken))
}

func (r *Resend) send(ctx context.Context, msg message) error {
	params := &resend.SendEmailRequest{
		From:    r.cfg.From,
		To:      []string{msg.to},
		Subject: msg.subject,
		Text:    msg.body,
	}

	sent, err := r.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return err
	}
	r.logger.Info("email sent", "type", msg.kind, "to", msg.to, "id", sent.Id)
	return nil
}

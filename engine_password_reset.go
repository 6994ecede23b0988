package authguard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authguard/internal/tokens"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset issues a reset token for email and hands it to the
// Mailer. Unknown addresses are silent no-ops. Each request invalidates every
// reset link sent before it. Rate limiting is the caller's job
// (CheckAuthAction with ActionForgotPassword).
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.userProvider == nil || e.mailer == nil {
		return ErrEngineNotReady
	}

	normalized := tokens.NormalizeEmail(email)
	if normalized == "" {
		return ErrInvalidEmail
	}

	e.metricInc(MetricPasswordResetRequest)

	if _, err := e.userProvider.GetUserByEmail(ctx, normalized); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, false, normalized, PurposeReset, ErrUserNotFound, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUserProviderUnavailable, err)
	}

	raw, err := e.CreateToken(ctx, normalized, PurposeReset)
	if err != nil {
		return err
	}

	if err := e.mailer.SendPasswordReset(ctx, normalized, raw); err != nil {
		return e.mailFailure(ctx, auditEventPasswordResetRequest, normalized, PurposeReset, err)
	}

	e.emitAudit(ctx, auditEventPasswordResetRequest, true, normalized, PurposeReset, nil, nil)
	return nil
}

// ConfirmPasswordReset consumes a reset token. ConsumeSuccess is the signal
// for the caller to store the new password hash; the engine does not touch
// credentials.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, rawToken string) (ConsumeStatus, error) {
	return e.ConsumeToken(ctx, email, PurposeReset, rawToken)
}

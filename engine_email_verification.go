package authguard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authguard/internal/tokens"
)

// RequestEmailVerification describes the requestemailverification operation and its observable behavior.
//
// RequestEmailVerification issues a verification token for email and hands
// it to the Mailer. Unknown and already-verified addresses are silent
// no-ops, so callers can answer every request with the same message.
// Rate limiting is the caller's job (CheckAuthAction with
// ActionRegister or ActionResendVerification).
//
// Errors: ErrInvalidEmail, ErrEngineNotReady (no Mailer), or errors wrapping
// ErrUserProviderUnavailable, ErrTokenStoreUnavailable, ErrMailUnavailable.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if e == nil || e.userProvider == nil || e.mailer == nil {
		return ErrEngineNotReady
	}

	normalized := tokens.NormalizeEmail(email)
	if normalized == "" {
		return ErrInvalidEmail
	}

	e.metricInc(MetricEmailVerificationRequest)

	user, err := e.userProvider.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventEmailVerificationRequest, false, normalized, PurposeVerify, ErrUserNotFound, nil)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUserProviderUnavailable, err)
	}
	if user.EmailVerified {
		e.emitAudit(ctx, auditEventEmailVerificationRequest, false, normalized, PurposeVerify, errAlreadyVerified, nil)
		return nil
	}

	raw, err := e.CreateToken(ctx, normalized, PurposeVerify)
	if err != nil {
		return err
	}

	if err := e.mailer.SendEmailVerification(ctx, normalized, raw); err != nil {
		return e.mailFailure(ctx, auditEventEmailVerificationRequest, normalized, PurposeVerify, err)
	}

	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, normalized, PurposeVerify, nil, nil)
	return nil
}

// ConfirmEmailVerification consumes a verification token. On
// ConsumeSuccess the address has been marked verified.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, email, rawToken string) (ConsumeStatus, error) {
	return e.ConsumeToken(ctx, email, PurposeVerify, rawToken)
}

func (e *Engine) mailFailure(ctx context.Context, eventType, email string, purpose TokenPurpose, err error) error {
	e.metricInc(MetricMailFailure)
	e.logger.Error("mail delivery failed",
		"purpose", string(purpose),
		"error", err,
	)
	wrapped := fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	e.emitAudit(ctx, eventType, false, email, purpose, wrapped, nil)
	return wrapped
}

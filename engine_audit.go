package authguard

import (
	"context"
	"errors"

	"github.com/MrEthical07/authguard/internal/rate"
)

const (
	auditEventRateLimitDenied          = "rate_limit_denied"
	auditEventRateLimitFallback        = "rate_limit_fallback"
	auditEventTokenIssued              = "token_issued"
	auditEventTokenConsumed            = "token_consumed"
	auditEventTokenInvalid             = "token_invalid"
	auditEventTokenExpired             = "token_expired"
	auditEventTokenStoreFailure        = "token_store_failure"
	auditEventEmailVerified            = "email_verified"
	auditEventEmailVerificationRequest = "email_verification_request"
	auditEventPasswordResetRequest     = "password_reset_request"
)

// AuditErrorCode is the stable error vocabulary carried in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidToken     AuditErrorCode = "invalid_token"
	auditErrExpiredToken     AuditErrorCode = "expired_token"
	auditErrUserNotFound     AuditErrorCode = "user_not_found"
	auditErrAlreadyVerified  AuditErrorCode = "already_verified"
	auditErrInvalidInput     AuditErrorCode = "invalid_input"
	auditErrStoreUnavailable AuditErrorCode = "store_unavailable"
	auditErrUserProvider     AuditErrorCode = "user_provider_unavailable"
	auditErrMailUnavailable  AuditErrorCode = "mail_unavailable"
	auditErrCounterDown      AuditErrorCode = "counter_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

// Audit-only outcomes; these never leave the package as errors.
var (
	errTokenInvalid    = errors.New("token invalid")
	errTokenExpired    = errors.New("token expired")
	errAlreadyVerified = errors.New("email already verified")
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	purpose TokenPurpose,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: eventType,
		Email:     email,
		Purpose:   string(purpose),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, errTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, errTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, errAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidPurpose),
		errors.Is(err, ErrInvalidAction):
		return auditErrInvalidInput
	case errors.Is(err, ErrTokenStoreUnavailable),
		errors.Is(err, ErrTokenConflict):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrUserProviderUnavailable):
		return auditErrUserProvider
	case errors.Is(err, ErrMailUnavailable):
		return auditErrMailUnavailable
	case errors.Is(err, rate.ErrCounterUnavailable),
		errors.Is(err, rate.ErrCounterResponse):
		return auditErrCounterDown
	default:
		return auditErrInternal
	}
}

// onAuditDrop logs the 1st, 2nd, 4th, 8th... dropped event so a saturated
// sink is visible without flooding the log.
func (e *Engine) onAuditDrop(event AuditEvent, total uint64) {
	if total&(total-1) != 0 {
		return
	}
	e.logger.Warn("audit event dropped",
		"event_type", event.EventType,
		"dropped_total", total,
	)
}

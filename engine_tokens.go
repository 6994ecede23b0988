package authguard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authguard/internal/tokens"
	"github.com/google/uuid"
)

// CreateToken describes the createtoken operation and its observable behavior.
//
// CreateToken issues a token for (purpose, email) and returns the raw value,
// which is never persisted. Any earlier token for the same pair stops
// working, and expired tokens of the purpose are purged opportunistically.
// The token lives Tokens.VerificationTTL or Tokens.ResetTTL.
//
// Errors: ErrInvalidEmail, ErrInvalidPurpose, ErrTokenGeneration, or an
// error wrapping ErrTokenStoreUnavailable.
func (e *Engine) CreateToken(ctx context.Context, email string, purpose TokenPurpose) (string, error) {
	if e == nil || e.tokenStore == nil {
		return "", ErrEngineNotReady
	}
	if !purpose.Valid() {
		return "", ErrInvalidPurpose
	}

	normalized := tokens.NormalizeEmail(email)
	if normalized == "" {
		return "", ErrInvalidEmail
	}

	raw, err := tokens.NewRaw()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	now := e.clock.Now()
	record := TokenRecord{
		ID:        uuid.NewString(),
		Purpose:   purpose,
		Email:     normalized,
		TokenHash: tokens.Hash(raw),
		ExpiresAt: now.Add(e.config.Tokens.TTL(purpose)),
		CreatedAt: now,
	}

	if err := e.tokenStore.Replace(ctx, record); err != nil {
		err = storeError(err)
		e.recordStoreFailure(ctx, "replace", normalized, purpose, err)
		return "", err
	}

	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, true, normalized, purpose, nil, func() map[string]string {
		return map[string]string{
			"token_id":   record.ID,
			"expires_at": record.ExpiresAt.UTC().Format(time.RFC3339),
		}
	})

	return raw, nil
}

// ConsumeToken describes the consumetoken operation and its observable behavior.
//
// ConsumeToken spends rawToken for (purpose, email). It returns
// ConsumeSuccess exactly once per issued token; the record is deleted first
// and then the purpose side effect runs (PurposeVerify marks the email
// verified through the UserProvider). A token found past its expiry is
// deleted and reported as ConsumeExpired, so a repeat attempt reports
// ConsumeInvalid. Of several concurrent consumers only the one whose delete
// removed the record succeeds; the others get ConsumeInvalid.
//
// Security outcomes are never errors. A non-nil error means infrastructure
// failed: it wraps ErrTokenStoreUnavailable, or ErrUserProviderUnavailable
// when the token was spent but the side effect failed.
func (e *Engine) ConsumeToken(ctx context.Context, email string, purpose TokenPurpose, rawToken string) (ConsumeStatus, error) {
	if e == nil || e.tokenStore == nil {
		return ConsumeInvalid, ErrEngineNotReady
	}
	if !purpose.Valid() {
		return ConsumeInvalid, ErrInvalidPurpose
	}

	normalized := tokens.NormalizeEmail(email)
	if normalized == "" || rawToken == "" {
		e.recordConsume(ctx, ConsumeInvalid, normalized, purpose)
		return ConsumeInvalid, nil
	}

	record, err := e.tokenStore.FindByHash(ctx, purpose, normalized, tokens.Hash(rawToken))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			e.recordConsume(ctx, ConsumeInvalid, normalized, purpose)
			return ConsumeInvalid, nil
		}
		err = storeError(err)
		e.recordStoreFailure(ctx, "find", normalized, purpose, err)
		return ConsumeInvalid, err
	}
	if record == nil {
		e.recordConsume(ctx, ConsumeInvalid, normalized, purpose)
		return ConsumeInvalid, nil
	}

	expired := record.ExpiresAt.Before(e.clock.Now())

	deleted, err := e.tokenStore.Delete(ctx, *record)
	if err != nil {
		err = storeError(err)
		e.recordStoreFailure(ctx, "delete", normalized, purpose, err)
		return ConsumeInvalid, err
	}
	if !deleted {
		e.recordConsume(ctx, ConsumeInvalid, normalized, purpose)
		return ConsumeInvalid, nil
	}
	if expired {
		e.recordConsume(ctx, ConsumeExpired, normalized, purpose)
		return ConsumeExpired, nil
	}

	if err := e.applyPurpose(ctx, purpose, normalized); err != nil {
		return ConsumeInvalid, err
	}

	e.recordConsume(ctx, ConsumeSuccess, normalized, purpose)
	return ConsumeSuccess, nil
}

func (e *Engine) applyPurpose(ctx context.Context, purpose TokenPurpose, email string) error {
	if purpose != PurposeVerify {
		return nil
	}

	if err := e.userProvider.MarkEmailVerified(ctx, email); err != nil {
		e.logger.Error("mark email verified failed after token was consumed",
			"email", email,
			"error", err,
		)
		wrapped := fmt.Errorf("%w: %v", ErrUserProviderUnavailable, err)
		e.emitAudit(ctx, auditEventEmailVerified, false, email, purpose, wrapped, nil)
		return wrapped
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, auditEventEmailVerified, true, email, purpose, nil, nil)
	return nil
}

func (e *Engine) recordConsume(ctx context.Context, status ConsumeStatus, email string, purpose TokenPurpose) {
	switch status {
	case ConsumeSuccess:
		e.metricInc(MetricTokenConsumeSuccess)
		e.emitAudit(ctx, auditEventTokenConsumed, true, email, purpose, nil, nil)
	case ConsumeExpired:
		e.metricInc(MetricTokenConsumeExpired)
		e.emitAudit(ctx, auditEventTokenExpired, false, email, purpose, errTokenExpired, nil)
	default:
		e.metricInc(MetricTokenConsumeInvalid)
		e.emitAudit(ctx, auditEventTokenInvalid, false, email, purpose, errTokenInvalid, nil)
	}
}

func (e *Engine) recordStoreFailure(ctx context.Context, op, email string, purpose TokenPurpose, err error) {
	e.metricInc(MetricTokenStoreFailure)
	e.logger.Error("token store operation failed",
		"op", op,
		"purpose", string(purpose),
		"error", err,
	)
	e.emitAudit(ctx, auditEventTokenStoreFailure, false, email, purpose, err, func() map[string]string {
		return map[string]string{"op": op}
	})
}

func storeError(err error) error {
	if errors.Is(err, ErrTokenStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
}

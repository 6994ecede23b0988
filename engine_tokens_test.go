package authguard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authguard/internal/tokens"
)

func TestCreateAndConsumeTokenSingleUse(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, err := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if len(raw) != 43 || strings.ContainsAny(raw, "+/=") {
		t.Fatalf("expected 43-char base64url token, got %q", raw)
	}

	status, err := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
	if err != nil || status != ConsumeSuccess {
		t.Fatalf("expected success, got %v err=%v", status, err)
	}

	status, err = te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
	if err != nil || status != ConsumeInvalid {
		t.Fatalf("expected invalid on reuse, got %v err=%v", status, err)
	}
}

func TestCreateTokenStoresOnlyHash(t *testing.T) {
	store := newMemoryTokenStore()
	te := newTestEngine(t, testEngineOptions{store: store})

	raw, err := te.CreateToken(context.Background(), "alice@example.com", PurposeVerify)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	rec := store.records["verify|alice@example.com"]
	if rec.TokenHash == raw {
		t.Fatal("raw token must never be stored")
	}
	if rec.TokenHash != tokens.Hash(raw) {
		t.Fatalf("stored hash mismatch: %q", rec.TokenHash)
	}
	if !rec.ExpiresAt.Equal(testEpoch.Add(24 * time.Hour)) {
		t.Fatalf("verification TTL not applied: %v", rec.ExpiresAt)
	}
	if rec.ID == "" {
		t.Fatal("expected record id")
	}
}

func TestCreateTokenSupersedesPrevious(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	first, err := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	second, err := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if first == second {
		t.Fatal("tokens must be unique")
	}

	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, first); status != ConsumeInvalid {
		t.Fatalf("superseded token must be invalid, got %v", status)
	}
	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, second); status != ConsumeSuccess {
		t.Fatalf("latest token must succeed, got %v", status)
	}
}

func TestConsumeTokenExpiredThenInvalid(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, err := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	te.clock.Advance(time.Hour + time.Second)

	status, err := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
	if err != nil || status != ConsumeExpired {
		t.Fatalf("expected expired, got %v err=%v", status, err)
	}
	status, err = te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
	if err != nil || status != ConsumeInvalid {
		t.Fatalf("expired token is deleted on first attempt, got %v err=%v", status, err)
	}
}

func TestConsumeTokenAtExactExpiryStillValid(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, _ := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	te.clock.Advance(time.Hour)

	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw); status != ConsumeSuccess {
		t.Fatalf("token expiring exactly now is still live, got %v", status)
	}
}

func TestConsumeTokenPurposesAreIsolated(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	verify, _ := te.CreateToken(ctx, "alice@example.com", PurposeVerify)
	reset, _ := te.CreateToken(ctx, "alice@example.com", PurposeReset)

	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, verify); status != ConsumeInvalid {
		t.Fatalf("verify token must not reset, got %v", status)
	}
	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeVerify, reset); status != ConsumeInvalid {
		t.Fatalf("reset token must not verify, got %v", status)
	}

	// Cross-purpose attempts leave both tokens usable.
	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeVerify, verify); status != ConsumeSuccess {
		t.Fatalf("verify token should still work, got %v", status)
	}
	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, reset); status != ConsumeSuccess {
		t.Fatalf("reset token should still work, got %v", status)
	}
}

func TestConsumeTokenWrongEmailIsInvalid(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, _ := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if status, _ := te.ConsumeToken(ctx, "mallory@example.com", PurposeReset, raw); status != ConsumeInvalid {
		t.Fatalf("expected invalid for another email, got %v", status)
	}
	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw); status != ConsumeSuccess {
		t.Fatalf("owner should still consume, got %v", status)
	}
}

func TestConsumeTokenNormalizesEmail(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, err := te.CreateToken(ctx, "  Alice@Example.COM", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if status, _ := te.ConsumeToken(ctx, "alice@example.com ", PurposeReset, raw); status != ConsumeSuccess {
		t.Fatalf("expected success across email casing, got %v", status)
	}
}

func TestConsumeTokenGarbageInputIsInvalid(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	cases := []struct {
		name  string
		email string
		token string
	}{
		{"empty token", "alice@example.com", ""},
		{"empty email", "", "abc"},
		{"never issued", "alice@example.com", "not-a-real-token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, err := te.ConsumeToken(ctx, tc.email, PurposeVerify, tc.token)
			if err != nil || status != ConsumeInvalid {
				t.Fatalf("expected invalid without error, got %v err=%v", status, err)
			}
		})
	}
}

func TestCreateTokenRejectsBadInput(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	if _, err := te.CreateToken(ctx, "   ", PurposeVerify); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := te.CreateToken(ctx, "a@example.com", TokenPurpose("mfa")); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
	if _, err := te.ConsumeToken(ctx, "a@example.com", TokenPurpose("mfa"), "x"); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestConsumeTokenConcurrentSingleWinner(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, err := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	var success, invalid atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, err := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			switch status {
			case ConsumeSuccess:
				success.Add(1)
			case ConsumeInvalid:
				invalid.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if success.Load() != 1 {
		t.Fatalf("expected exactly one success, got %d", success.Load())
	}
	if invalid.Load() != 15 {
		t.Fatalf("expected 15 invalid, got %d", invalid.Load())
	}
}

func TestConsumeVerifyTokenMarksEmailVerified(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, _ := te.CreateToken(ctx, "alice@example.com", PurposeVerify)
	if te.users.verified("alice@example.com") {
		t.Fatal("must not be verified before consume")
	}

	status, err := te.ConfirmEmailVerification(ctx, "alice@example.com", raw)
	if err != nil || status != ConsumeSuccess {
		t.Fatalf("expected success, got %v err=%v", status, err)
	}
	if !te.users.verified("alice@example.com") {
		t.Fatal("expected email to be marked verified")
	}
}

func TestConsumeResetTokenDoesNotTouchUser(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	raw, _ := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if status, _ := te.ConfirmPasswordReset(ctx, "alice@example.com", raw); status != ConsumeSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if len(te.users.marked) != 0 {
		t.Fatalf("reset must not mark anything, got %v", te.users.marked)
	}
}

func TestConsumeVerifyTokenSideEffectFailure(t *testing.T) {
	users := newMockUserProvider("alice@example.com")
	users.markErr = errors.New("db down")
	te := newTestEngine(t, testEngineOptions{users: users})
	ctx := context.Background()

	raw, _ := te.CreateToken(ctx, "alice@example.com", PurposeVerify)
	status, err := te.ConsumeToken(ctx, "alice@example.com", PurposeVerify, raw)
	if !errors.Is(err, ErrUserProviderUnavailable) {
		t.Fatalf("expected ErrUserProviderUnavailable, got %v", err)
	}
	if status != ConsumeInvalid {
		t.Fatalf("expected invalid status with error, got %v", status)
	}

	users.markErr = nil
	if status, _ := te.ConsumeToken(ctx, "alice@example.com", PurposeVerify, raw); status != ConsumeInvalid {
		t.Fatalf("token was spent before the side effect, got %v", status)
	}
}

func TestTokenStoreUnavailableIsAnError(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{cfg: memoryOnlyConfig()})
	ctx := context.Background()

	raw, err := te.CreateToken(ctx, "alice@example.com", PurposeReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	te.mr.Close()

	if _, err := te.CreateToken(ctx, "alice@example.com", PurposeReset); !errors.Is(err, ErrTokenStoreUnavailable) {
		t.Fatalf("expected ErrTokenStoreUnavailable from create, got %v", err)
	}
	status, err := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
	if !errors.Is(err, ErrTokenStoreUnavailable) {
		t.Fatalf("expected ErrTokenStoreUnavailable from consume, got %v", err)
	}
	if status != ConsumeInvalid {
		t.Fatalf("expected invalid status alongside the error, got %v", status)
	}
	if got := te.MetricsSnapshot().Counters[MetricTokenStoreFailure]; got != 2 {
		t.Fatalf("expected 2 store failures, got %d", got)
	}
}

func TestConsumeTokenDeleteFailure(t *testing.T) {
	store := newMemoryTokenStore()
	te := newTestEngine(t, testEngineOptions{store: store})
	ctx := context.Background()

	raw, _ := te.CreateToken(ctx, "alice@example.com", PurposeReset)

	// Replace and FindByHash succeed, Delete fails.
	store.mu.Lock()
	store.calls = 0
	store.failAfter = 1
	store.err = errStoreDown
	store.mu.Unlock()

	status, err := te.ConsumeToken(ctx, "alice@example.com", PurposeReset, raw)
	if !errors.Is(err, ErrTokenStoreUnavailable) || status != ConsumeInvalid {
		t.Fatalf("expected wrapped store error, got %v err=%v", status, err)
	}
	if store.len() != 1 {
		t.Fatal("record must survive a failed delete")
	}
}

func TestCreateTokenPurgesExpiredRecordsOfPurpose(t *testing.T) {
	store := newMemoryTokenStore()
	te := newTestEngine(t, testEngineOptions{store: store})
	ctx := context.Background()

	_, _ = te.CreateToken(ctx, "old@example.com", PurposeReset)
	_, _ = te.CreateToken(ctx, "keep@example.com", PurposeVerify)
	te.clock.Advance(2 * time.Hour)
	_, _ = te.CreateToken(ctx, "new@example.com", PurposeReset)

	if _, ok := store.records["reset|old@example.com"]; ok {
		t.Fatal("expired reset record should be purged")
	}
	if _, ok := store.records["verify|keep@example.com"]; !ok {
		t.Fatal("records of other purposes must survive")
	}
}

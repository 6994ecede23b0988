package authguard

import (
	"context"
	"errors"
	"testing"
)

func TestRequestEmailVerificationSendsToken(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	if err := te.RequestEmailVerification(ctx, " Alice@Example.com "); err != nil {
		t.Fatalf("RequestEmailVerification failed: %v", err)
	}

	mail := te.mailer.last(t)
	if mail.kind != "verify" || mail.email != "alice@example.com" {
		t.Fatalf("unexpected mail %+v", mail)
	}

	status, err := te.ConfirmEmailVerification(ctx, "alice@example.com", mail.token)
	if err != nil || status != ConsumeSuccess {
		t.Fatalf("expected the mailed token to verify, got %v err=%v", status, err)
	}
	if !te.users.verified("alice@example.com") {
		t.Fatal("expected email verified")
	}
}

func TestRequestEmailVerificationUnknownUserIsSilent(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})

	if err := te.RequestEmailVerification(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("unknown users must not surface an error, got %v", err)
	}
	if te.mailer.count() != 0 {
		t.Fatal("no mail for unknown users")
	}
}

func TestRequestEmailVerificationAlreadyVerifiedIsSilent(t *testing.T) {
	users := newMockUserProvider()
	users.users["done@example.com"] = UserRecord{Email: "done@example.com", EmailVerified: true}
	te := newTestEngine(t, testEngineOptions{users: users})

	if err := te.RequestEmailVerification(context.Background(), "done@example.com"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if te.mailer.count() != 0 {
		t.Fatal("no mail for verified users")
	}
}

func TestRequestEmailVerificationResendSupersedes(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	_ = te.RequestEmailVerification(ctx, "alice@example.com")
	first := te.mailer.last(t).token
	_ = te.RequestEmailVerification(ctx, "alice@example.com")
	second := te.mailer.last(t).token

	if status, _ := te.ConfirmEmailVerification(ctx, "alice@example.com", first); status != ConsumeInvalid {
		t.Fatalf("resend must invalidate the first link, got %v", status)
	}
	if status, _ := te.ConfirmEmailVerification(ctx, "alice@example.com", second); status != ConsumeSuccess {
		t.Fatalf("latest link must work, got %v", status)
	}
}

func TestRequestPasswordResetFlow(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	ctx := context.Background()

	if err := te.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	mail := te.mailer.last(t)
	if mail.kind != "reset" {
		t.Fatalf("expected reset mail, got %q", mail.kind)
	}

	if status, _ := te.ConfirmPasswordReset(ctx, "alice@example.com", mail.token); status != ConsumeSuccess {
		t.Fatalf("expected success, got %v", status)
	}
	if status, _ := te.ConfirmPasswordReset(ctx, "alice@example.com", mail.token); status != ConsumeInvalid {
		t.Fatalf("expected invalid on reuse, got %v", status)
	}
}

func TestRequestPasswordResetUnknownUserIsSilent(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	if err := te.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if te.mailer.count() != 0 {
		t.Fatal("no mail for unknown users")
	}
}

func TestRequestFlowsMailFailure(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp 451")}
	te := newTestEngine(t, testEngineOptions{mailer: mailer})
	ctx := context.Background()

	if err := te.RequestPasswordReset(ctx, "alice@example.com"); !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("expected ErrMailUnavailable, got %v", err)
	}
	if err := te.RequestEmailVerification(ctx, "alice@example.com"); !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("expected ErrMailUnavailable, got %v", err)
	}
}

func TestRequestFlowsUserProviderFailure(t *testing.T) {
	users := newMockUserProvider()
	users.lookupErr = errors.New("timeout")
	te := newTestEngine(t, testEngineOptions{users: users})

	if err := te.RequestPasswordReset(context.Background(), "alice@example.com"); !errors.Is(err, ErrUserProviderUnavailable) {
		t.Fatalf("expected ErrUserProviderUnavailable, got %v", err)
	}
}

func TestRequestFlowsRejectEmptyEmail(t *testing.T) {
	te := newTestEngine(t, testEngineOptions{})
	if err := te.RequestPasswordReset(context.Background(), ""); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestRequestFlowsRequireMailer(t *testing.T) {
	rdbMr, rdb := newTestRedis(t)
	defer rdbMr.Close()

	engine, err := New().
		WithRedis(rdb).
		WithLogger(quietLogger()).
		WithUserProvider(newMockUserProvider("alice@example.com")).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if err := engine.RequestEmailVerification(context.Background(), "alice@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shuggg999/authcore/directory"
)

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestVerifyEmailConsumesCode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "alice")

	u, err := env.engine.VerifyEmail(ctx, "A@x.com", reg.DebugCode)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	if !u.EmailVerified {
		t.Fatal("expected verified user")
	}

	// Second use of the same code reports not found, not success.
	_, err = env.engine.VerifyEmail(ctx, "a@x.com", reg.DebugCode)
	wantCode(t, err, CodeInvalidVerificationCode)

	stored, err := env.dir.UserByEmail(ctx, "a@x.com")
	if err != nil || !stored.EmailVerified {
		t.Fatalf("expected persisted verification, got %v", err)
	}

	env.waitAudit(t, directory.ActionEmailVerification, AuditSuccess)
}

func TestVerifyEmailAttemptBudget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "alice")
	bad := wrongCode(reg.DebugCode)

	key := "authcore:email_verification:a@x.com"
	env.mr.FastForward(time.Hour)
	ttlBefore := env.mr.TTL(key)

	for want := 2; want >= 0; want-- {
		_, err := env.engine.VerifyEmail(ctx, "a@x.com", bad)
		wantCode(t, err, CodeInvalidVerificationCode)
		var aerr *Error
		if !errors.As(err, &aerr) || aerr.RemainingAttempts != want {
			t.Fatalf("expected %d remaining, got %+v", want, aerr)
		}
	}

	if ttl := env.mr.TTL(key); ttl != ttlBefore {
		t.Fatalf("mismatches must keep the ttl: before %v after %v", ttlBefore, ttl)
	}

	// Even the right code is refused once the budget is spent.
	_, err := env.engine.VerifyEmail(ctx, "a@x.com", reg.DebugCode)
	wantCode(t, err, CodeVerificationAttemptsExceeded)
}

func TestVerifyEmailUnknown(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.VerifyEmail(context.Background(), "ghost@x.com", "123456")
	wantCode(t, err, CodeInvalidVerificationCode)
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not found kind, got %v", KindOf(err))
	}
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	env := newTestEnv(t, nil)
	reg := env.register(t, "a@x.com", "alice")

	env.mr.FastForward(25 * time.Hour)

	_, err := env.engine.VerifyEmail(context.Background(), "a@x.com", reg.DebugCode)
	wantCode(t, err, CodeInvalidVerificationCode)
}

func TestResendVerificationResetsRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	reg := env.register(t, "a@x.com", "alice")

	_, _ = env.engine.VerifyEmail(ctx, "a@x.com", wrongCode(reg.DebugCode))

	out, err := env.engine.ResendVerification(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("ResendVerification failed: %v", err)
	}
	if out.DebugCode == "" || !out.ExpiresAt.After(time.Now().Add(23*time.Hour)) {
		t.Fatalf("unexpected resend result %+v", out)
	}

	rec, err := env.engine.verificationStore.Get(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.Attempts != 0 {
		t.Fatalf("expected attempts reset, got %d", rec.Attempts)
	}

	if out.DebugCode != reg.DebugCode {
		_, err = env.engine.VerifyEmail(ctx, "a@x.com", reg.DebugCode)
		wantCode(t, err, CodeInvalidVerificationCode)
	}
	if _, err := env.engine.VerifyEmail(ctx, "a@x.com", out.DebugCode); err != nil {
		t.Fatalf("new code rejected: %v", err)
	}
}

func TestResendVerificationRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.engine.ResendVerification(ctx, "ghost@x.com")
	wantCode(t, err, CodeUserNotFound)

	reg := env.register(t, "a@x.com", "alice")
	if _, err := env.engine.VerifyEmail(ctx, "a@x.com", reg.DebugCode); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	_, err = env.engine.ResendVerification(ctx, "a@x.com")
	wantCode(t, err, CodeEmailAlreadyVerified)
}

func TestResendVerificationRateLimited(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "a@x.com", "alice")

	for i := 0; i < 3; i++ {
		if _, err := env.engine.ResendVerification(ctx, "a@x.com"); err != nil {
			t.Fatalf("resend %d failed: %v", i+1, err)
		}
	}
	_, err := env.engine.ResendVerification(ctx, "a@x.com")
	wantCode(t, err, CodeRateLimited)
}

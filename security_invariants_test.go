package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSecurityInvariantRefreshReplayInvalidatesSession(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Session.RefreshRotation = true
	})
	ctx := context.Background()
	env.register(t, "a@x.com", "alice")
	login := env.login(t, "a@x.com", false)

	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if env.mr.Exists("authcore:session:" + login.Tokens.SessionID) {
		t.Fatal("expected replay to drop the cached session")
	}
	if _, err := env.dir.SessionByToken(ctx, login.Tokens.SessionID); err == nil {
		t.Fatal("expected replay to delete the directory session")
	}
}

func TestSecurityInvariantRefreshTokenStoredHashed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "a@x.com", "alice")
	login := env.login(t, "a@x.com", false)

	row, err := env.dir.SessionByToken(context.Background(), login.Tokens.SessionID)
	if err != nil {
		t.Fatalf("session row missing: %v", err)
	}
	if row.RefreshTokenHash == "" || strings.Contains(login.Tokens.RefreshToken, row.RefreshTokenHash) ||
		strings.Contains(row.RefreshTokenHash, login.Tokens.RefreshToken) {
		t.Fatalf("refresh token must be stored as a digest, got %q", row.RefreshTokenHash)
	}
}

func TestSecurityInvariantTokenTypesAreNotInterchangeable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "a@x.com", "alice")
	login := env.login(t, "a@x.com", false)

	reset, err := env.engine.RequestPasswordReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	for name, token := range map[string]string{
		"refresh": login.Tokens.RefreshToken,
		"reset":   reset.DebugToken,
	} {
		_, err := env.engine.Validate(ctx, token, ModeJWTOnly)
		if CodeOf(err) != CodeInvalidToken {
			t.Fatalf("%s token accepted as access token: %v", name, err)
		}
	}

	_, err = env.engine.Refresh(ctx, login.Tokens.AccessToken)
	wantCode(t, err, CodeInvalidRefreshToken)

	err = env.engine.ResetPassword(ctx, login.Tokens.AccessToken, newTestPassword)
	wantCode(t, err, CodeInvalidResetToken)
}

func TestSecurityInvariantNoSecretsInAuditEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.register(t, "a@x.com", "alice")
	login := env.login(t, "a@x.com", false)
	if _, err := env.engine.Refresh(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	_, _ = env.engine.Login(ctx, LoginRequest{Email: "a@x.com", Password: "Wr0ng-Password!"})
	reset, err := env.engine.RequestPasswordReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	stored, err := env.dir.UserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("user lookup failed: %v", err)
	}

	needles := []string{
		testPassword,
		"Wr0ng-Password!",
		login.Tokens.AccessToken,
		login.Tokens.RefreshToken,
		reset.DebugToken,
		*stored.PasswordHash,
	}

	events := make([]AuditEvent, 0, 8)
	timeout := time.After(2 * time.Second)
collect:
	for len(events) < 5 {
		select {
		case ev := <-env.sink.Events():
			events = append(events, ev)
		case <-timeout:
			break collect
		}
	}
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}

	for _, ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		for _, needle := range needles {
			if needle != "" && strings.Contains(string(raw), needle) {
				t.Fatalf("secret leaked in %s audit event: %s", ev.Action, raw)
			}
		}
	}
}

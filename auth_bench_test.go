package authcore

import (
	"context"
	"testing"
	"time"
)

func newBenchmarkEnv(b *testing.B, mode ValidationMode) (*testEnv, *LoginResult) {
	b.Helper()
	env := newTestEnv(b, func(cfg *Config) {
		cfg.ValidationMode = mode
		cfg.Metrics.Enabled = false
		cfg.Audit.Enabled = false
		cfg.JWT.AccessTTL = 10 * time.Minute
	})
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, RegisterRequest{
		Email: "bench@x.com", Username: "bench", Password: testPassword, FullName: "Bench", AgreeToTerms: true,
	}); err != nil {
		b.Fatalf("register failed: %v", err)
	}
	login, err := env.engine.Login(ctx, LoginRequest{Email: "bench@x.com", Password: testPassword})
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}
	return env, login
}

func BenchmarkValidateJWTOnly(b *testing.B) {
	env, login := newBenchmarkEnv(b, ModeJWTOnly)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Validate(context.Background(), login.Tokens.AccessToken, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateStrict(b *testing.B) {
	env, login := newBenchmarkEnv(b, ModeStrict)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Validate(context.Background(), login.Tokens.AccessToken, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env, login := newBenchmarkEnv(b, ModeStrict)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Refresh(context.Background(), login.Tokens.RefreshToken); err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}

func BenchmarkLogin(b *testing.B) {
	env, _ := newBenchmarkEnv(b, ModeStrict)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := env.engine.Login(ctx, LoginRequest{Email: "bench@x.com", Password: testPassword})
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		if _, err := env.engine.Logout(ctx, res.Tokens.SessionID, false); err != nil {
			b.Fatalf("logout failed: %v", err)
		}
	}
}

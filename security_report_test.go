package authcore

import (
	"strings"
	"testing"
)

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t, nil)

	r := env.engine.SecurityReport()
	if r.SigningAlgorithm != "HS256" || r.ValidationMode != ModeStrict {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.LoginAttempts != 5 || !r.RateLimitFailOpen {
		t.Fatalf("unexpected limiter posture %+v", r)
	}
	if !r.DebugExposure {
		t.Fatal("test config exposes debug codes")
	}

	joined := strings.Join(r.Warnings, "\n")
	for _, want := range []string{"returned to callers", "below 64 MiB"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning %q in %v", want, r.Warnings)
		}
	}
}

func TestSecurityReportProductionDefaults(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		d := DefaultConfig()
		cfg.Password = d.Password
		cfg.Register.ExposeDebugCode = false
		cfg.PasswordReset.ExposeDebugToken = false
	})

	if w := env.engine.SecurityReport().Warnings; len(w) != 0 {
		t.Fatalf("expected no warnings, got %v", w)
	}
}

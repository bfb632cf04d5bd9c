package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shuggg999/authcore"
	"github.com/shuggg999/authcore/directory"
)

func newEngine(t *testing.T) *authcore.Engine {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := directory.Open(ctx, directory.Config{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store, err := directory.New(db, 1, zap.NewNop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := store.SeedRoles(ctx, directory.DefaultRoles()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	engine, err := authcore.New().WithConfig(cfg).WithRedis(rdb).WithDirectory(store).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func loginToken(t *testing.T, engine *authcore.Engine) *authcore.LoginResult {
	t.Helper()
	ctx := context.Background()

	if _, err := engine.Register(ctx, authcore.RegisterRequest{
		Email:        "a@x.com",
		Username:     "alice",
		Password:     "Tr0ub4dor&3!",
		FullName:     "Alice",
		AgreeToTerms: true,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	res, err := engine.Login(ctx, authcore.LoginRequest{Email: "a@x.com", Password: "Tr0ub4dor&3!"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return res
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardStoresAuthResult(t *testing.T) {
	engine := newEngine(t)
	login := loginToken(t, engine)

	var got *authcore.AuthResult
	h := RequireStrict(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = AuthResultFromContext(r.Context())
	}))

	rec := serve(h, login.Tokens.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.UserID != login.User.ID || !got.Strict {
		t.Fatalf("unexpected auth result %+v", got)
	}
}

func TestGuardRejectsMissingAndInvalidTokens(t *testing.T) {
	engine := newEngine(t)
	h := RequireJWTOnly(engine)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	if rec := serve(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(h, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage, got %d", rec.Code)
	}
}

func TestStrictGuardRejectsRevokedSession(t *testing.T) {
	engine := newEngine(t)
	login := loginToken(t, engine)

	if _, err := engine.Logout(context.Background(), login.Tokens.SessionID, false); err != nil {
		t.Fatalf("logout: %v", err)
	}

	ok := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	if rec := serve(RequireStrict(engine)(ok), login.Tokens.AccessToken); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", rec.Code)
	}
	if rec := serve(RequireJWTOnly(engine)(ok), login.Tokens.AccessToken); rec.Code != http.StatusOK {
		t.Fatalf("jwt-only should still accept, got %d", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	engine := newEngine(t)
	login := loginToken(t, engine)
	ok := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	allowed := Guard(engine, authcore.ModeInherit)(RequirePermission("write:profile")(ok))
	if rec := serve(allowed, login.Tokens.AccessToken); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	denied := Guard(engine, authcore.ModeInherit)(RequirePermission("read:advanced")(ok))
	if rec := serve(denied, login.Tokens.AccessToken); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	if rec := serve(RequirePermission("write:profile")(ok), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without guard, got %d", rec.Code)
	}
}

func TestClientMetadata(t *testing.T) {
	var ip string
	h := ClientMetadata(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = clientIP(r, true)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ip != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", ip)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.2:5555"
	if got := clientIP(req, false); got != "198.51.100.2" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc": true,
		"bearer abc": true,
		"Bearer ":    false,
		"Basic abc":  false,
		"":           false,
	}
	for header, want := range cases {
		if _, ok := bearerToken(header); ok != want {
			t.Fatalf("%q: expected %v", header, want)
		}
	}
}

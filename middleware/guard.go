package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/shuggg999/authcore"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity stored by a guard.
func AuthResultFromContext(ctx context.Context) (*authcore.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authcore.AuthResult)
	return res, ok
}

// Guard rejects requests without a valid bearer access token.
func Guard(engine *authcore.Engine, mode authcore.ValidationMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, string(authcore.CodeInvalidToken), http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, string(authcore.CodeInvalidToken), http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token, mode)
			if err != nil {
				http.Error(w, string(authcore.CodeOf(err)), statusFor(err))
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects requests whose role lacks perm. It answers 401
// when no guard ran before it.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				http.Error(w, string(authcore.CodeInvalidToken), http.StatusUnauthorized)
				return
			}
			if !res.HasPermission(perm) {
				http.Error(w, string(authcore.CodePermissionDenied), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientMetadata copies the client IP and user agent into the request
// context so flows can record them in sessions and audit entries. The
// first X-Forwarded-For hop wins over RemoteAddr; only enable it behind a
// proxy that sets the header.
func ClientMetadata(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authcore.WithClientIP(r.Context(), clientIP(r, trustForwarded))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(first)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusFor(err error) int {
	switch authcore.KindOf(err) {
	case authcore.KindAuthentication, authcore.KindNotFound:
		return http.StatusUnauthorized
	case authcore.KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

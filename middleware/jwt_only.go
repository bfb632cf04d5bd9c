package middleware

import (
	"net/http"

	"github.com/shuggg999/authcore"
)

// RequireJWTOnly validates signature and expiry only, skipping Redis
// entirely. Revoked sessions stay usable until the access token expires.
func RequireJWTOnly(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, authcore.ModeJWTOnly)
}

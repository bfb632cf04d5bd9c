package middleware

import (
	"net/http"

	"github.com/shuggg999/authcore"
)

// RequireStrict also requires the session to be live and slides its TTL.
func RequireStrict(engine *authcore.Engine) func(http.Handler) http.Handler {
	return Guard(engine, authcore.ModeStrict)
}

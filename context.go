package authcore

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Login stores it on
// the directory session row and every flow copies it into its audit event;
// both are capped at 45 bytes, enough for an IPv6 literal.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the client's User-Agent to ctx. It lands on the
// session row and the audit log, cut to 512 bytes on a rune boundary.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	return contextString(ctx, clientIPContextKey{})
}

func userAgentFromContext(ctx context.Context) string {
	return contextString(ctx, userAgentContextKey{})
}

// contextString reads a string value, tolerating a nil ctx from callers
// that build requests by hand.
func contextString(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

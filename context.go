package authgate

import "context"

type contextKey int

const (
	csrfTokenContextKey contextKey = iota
	clientIPContextKey
)

// WithCSRFToken returns a context carrying the anti-CSRF token the
// dispatcher attaches as X-CSRF-Token to outbound calls.
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenContextKey, token)
}

// CSRFTokenFromContext extracts a CSRF token previously stored with
// [WithCSRFToken]; it returns "" when none is present.
func CSRFTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

// WithClientIP returns a context carrying the originating client IP,
// folded into audit event metadata.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey, ip)
}

// ClientIPFromContext extracts a client IP previously stored with
// [WithClientIP]; it returns "" when none is present.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

package adminauth

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type identityContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP login throttling, the session row and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It is stored as
// the session's client descriptor.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithIdentity attaches a validated identity to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/adminauth"
)

// RequireSession rejects requests without a valid bearer token. On success the
// identity is available through adminauth.IdentityFromContext.
func RequireSession(engine *adminauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := withClient(r)
			id, err := engine.Validate(ctx, token)
			if err != nil {
				if errors.Is(err, adminauth.ErrStoreUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(adminauth.WithIdentity(ctx, id)))
		})
	}
}

// RequirePermission runs RequireSession and then checks that the caller's
// role grants perm.
func RequirePermission(engine *adminauth.Engine, perm string) func(http.Handler) http.Handler {
	session := RequireSession(engine)
	return func(next http.Handler) http.Handler {
		return session(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := adminauth.IdentityFromContext(r.Context())
			if !ok || !engine.HasPermission(id.Role, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// ClientContext attaches the caller's IP address and User-Agent for routes
// that run before a session exists, such as login and password reset.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withClient(r)))
	})
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func withClient(r *http.Request) context.Context {
	return adminauth.WithUserAgent(adminauth.WithClientIP(r.Context(), clientIP(r)), r.UserAgent())
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

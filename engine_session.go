package adminauth

import (
	"context"
	"time"

	"github.com/MrEthical07/adminauth/internal/flows"
)

// Validate authorizes a bearer token. It fails with ErrTokenInvalid when the
// token does not verify, ErrSessionExpired once the inactivity ceiling has
// passed since issuance (whatever the row says), and ErrSessionRevoked when
// the session row is absent, inactive or expired.
func (e *Engine) Validate(ctx context.Context, token string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}
	res := e.flows.Validate(ctx, token)
	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	if res.Failure != flows.ValidateFailureNone {
		return nil, res.Err
	}
	return &Identity{
		UserID:    res.Claims.UserID,
		Role:      res.Claims.Role,
		SessionID: res.Claims.SessionID(),
		IssuedAt:  res.Claims.IssuedAtTime(),
		ExpiresAt: res.Session.ExpiresAt,
		TokenHash: res.Session.TokenHash,
	}, nil
}

// Logout deactivates the session behind token. Calling it again, or for a
// session that was already revoked, is not an error.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.Logout(ctx, token)
}

// LogoutAll deactivates every active session of userID and returns how many
// rows changed.
func (e *Engine) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return e.flows.LogoutAll(ctx, userID, "")
}

// LogoutOthers deactivates every session of the caller except the current one.
func (e *Engine) LogoutOthers(ctx context.Context, id *Identity) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if id == nil {
		return 0, ErrTokenInvalid
	}
	return e.flows.LogoutAll(ctx, id.UserID, id.TokenHash)
}

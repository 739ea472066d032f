package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/jwt"
)

// SessionDeps captures validation and logout dependencies.
type SessionDeps struct {
	Runtime

	InactivityCeiling time.Duration
	VerifyToken       func(token string, now time.Time) (*jwt.Claims, error)
}

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureTokenInvalid
	ValidateFailureExpired
	ValidateFailureRevoked
	ValidateFailureBackend
)

// ValidateResult returns either the verified claims and ledger row or a
// classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Session admin.LoginSession
}

func normalizeSessionDeps(d *SessionDeps) {
	d.Runtime.normalize()
	if d.InactivityCeiling <= 0 {
		d.InactivityCeiling = 15 * time.Minute
	}
}

// RunValidate authorizes a bearer token. The token must pass both guards:
// the inactivity ceiling measured from its issued-at, and the ledger row.
func RunValidate(ctx context.Context, token string, deps SessionDeps) ValidateResult {
	normalizeSessionDeps(&deps)
	if !deps.Runtime.Ready() || deps.VerifyToken == nil {
		return ValidateResult{Failure: ValidateFailureBackend, Err: deps.Errors.EngineNotReady}
	}

	now := deps.Now()
	claims, err := deps.VerifyToken(token, now)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			deps.MetricInc(deps.Metrics.SessionExpired)
			return ValidateResult{Failure: ValidateFailureExpired, Err: deps.Errors.SessionExpired}
		}
		deps.MetricInc(deps.Metrics.TokenInvalid)
		return ValidateResult{Failure: ValidateFailureTokenInvalid, Err: deps.Errors.TokenInvalid}
	}

	active := WithinInactivityCeiling(claims.IssuedAtTime(), now, deps.InactivityCeiling)
	row, live, ledgerErr := ledgerAllows(ctx, deps.Store.Sessions(), claims, HashToken(token), now)

	switch {
	case active && live && ledgerErr == nil:
		deps.MetricInc(deps.Metrics.ValidateSuccess)
		return ValidateResult{Claims: claims, Session: row}
	case !active:
		deps.MetricInc(deps.Metrics.SessionExpired)
		return ValidateResult{Failure: ValidateFailureExpired, Err: deps.Errors.SessionExpired, Claims: claims}
	case ledgerErr != nil:
		return ValidateResult{Failure: ValidateFailureBackend, Err: deps.storeError(ledgerErr), Claims: claims}
	default:
		deps.MetricInc(deps.Metrics.SessionRevoked)
		return ValidateResult{Failure: ValidateFailureRevoked, Err: deps.Errors.SessionRevoked, Claims: claims}
	}
}

// WithinInactivityCeiling reports whether no more than ceiling has elapsed
// since issuedAt. The row is not consulted.
func WithinInactivityCeiling(issuedAt, now time.Time, ceiling time.Duration) bool {
	return now.Sub(issuedAt) <= ceiling
}

// ledgerAllows reports whether the session row for tokenHash is active,
// unexpired and belongs to the token's subject.
func ledgerAllows(ctx context.Context, sessions admin.SessionRepository, claims *jwt.Claims, tokenHash string, now time.Time) (admin.LoginSession, bool, error) {
	row, err := sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return admin.LoginSession{}, false, nil
		}
		return admin.LoginSession{}, false, err
	}
	if row.UserID != claims.UserID || row.ID != claims.SessionID() {
		return row, false, nil
	}
	return row, row.Live(now), nil
}

// RunLogout deactivates the row behind token. Unknown or already inactive
// rows are not an error. Tokens past their exp are still accepted so a client
// can always clear its own session.
func RunLogout(ctx context.Context, token string, deps SessionDeps) error {
	normalizeSessionDeps(&deps)
	if !deps.Runtime.Ready() || deps.VerifyToken == nil {
		return deps.Errors.EngineNotReady
	}

	now := deps.Now()
	claims, err := deps.VerifyToken(token, now)
	if err != nil && !errors.Is(err, jwt.ErrExpired) {
		deps.EmitAudit(ctx, deps.Events.Logout, false, "", "", deps.Errors.TokenInvalid, nil)
		return deps.Errors.TokenInvalid
	}

	var uid, sid string
	if claims != nil {
		uid, sid = formatID(claims.UserID), claims.SessionID()
	}

	changed, err := deps.Store.Sessions().Deactivate(ctx, HashToken(token), now)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, uid, sid, err, nil)
		return deps.storeError(err)
	}
	if changed {
		deps.MetricInc(deps.Metrics.Logout)
	}
	deps.EmitAudit(ctx, deps.Events.Logout, true, uid, sid, nil, func() map[string]string {
		if changed {
			return nil
		}
		return map[string]string{"reason": "already_inactive"}
	})
	return nil
}

// RunLogoutAll deactivates every active row of userID except keepTokenHash,
// which may be empty.
func RunLogoutAll(ctx context.Context, userID int64, keepTokenHash string, deps SessionDeps) (int64, error) {
	normalizeSessionDeps(&deps)
	if !deps.Runtime.Ready() {
		return 0, deps.Errors.EngineNotReady
	}
	if userID <= 0 {
		return 0, deps.Errors.InvalidRequest
	}

	n, err := deps.Store.Sessions().DeactivateUser(ctx, userID, keepTokenHash, deps.Now())
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, formatID(userID), "", err, nil)
		return 0, deps.storeError(err)
	}
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, formatID(userID), "", nil, nil)
	return n, nil
}

package adminauth

import "context"

// RequestPasswordReset issues a reset token for email and sends the link.
// Any earlier token of the user stops working. The result for an unknown or
// disabled account is indistinguishable from success.
//
// A failed notification does not fail the call; it sets Degraded.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.RequestPasswordReset(ctx, email)
	if err != nil {
		return nil, err
	}
	return &ResetRequestResult{Degraded: res.Degraded}, nil
}

// ResetPassword redeems token and sets newPassword. A token is redeemable
// once; an unknown, expired or already used token fails with
// ErrTokenExpiredOrUnknown.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.flows.ResetPassword(ctx, token, newPassword)
}

// ChangePassword replaces the password of an authenticated user after
// checking current. The caller's own session survives revocation.
func (e *Engine) ChangePassword(ctx context.Context, id *Identity, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if id == nil {
		return ErrTokenInvalid
	}
	return e.flows.ChangePassword(ctx, id.UserID, current, next, id.TokenHash)
}

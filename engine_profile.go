package adminauth

import (
	"context"

	"github.com/MrEthical07/adminauth/admin"
)

// Profile returns the caller's own summary.
func (e *Engine) Profile(ctx context.Context, userID int64) (admin.Summary, error) {
	if !e.ready() {
		return admin.Summary{}, ErrEngineNotReady
	}
	return e.flows.Profile(ctx, userID)
}

// UpdateProfile writes name and phone on the caller's own row.
func (e *Engine) UpdateProfile(ctx context.Context, userID int64, name, phone string) (admin.Summary, error) {
	if !e.ready() {
		return admin.Summary{}, ErrEngineNotReady
	}
	return e.flows.UpdateProfile(ctx, userID, name, phone)
}

package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/adminauth/admin"
)

// RunProfile returns the caller's own summary.
func RunProfile(ctx context.Context, userID int64, deps Runtime) (admin.Summary, error) {
	deps.normalize()
	if !deps.Ready() {
		return admin.Summary{}, deps.Errors.EngineNotReady
	}
	u, err := deps.Store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return admin.Summary{}, deps.Errors.UserNotFound
		}
		return admin.Summary{}, deps.storeError(err)
	}
	return u.Summary(), nil
}

// RunUpdateProfile writes name and phone on the caller's own row. It is the
// only user mutation that bypasses the approval pipeline.
func RunUpdateProfile(ctx context.Context, userID int64, name, phone string, deps Runtime) (admin.Summary, error) {
	deps.normalize()
	if !deps.Ready() {
		return admin.Summary{}, deps.Errors.EngineNotReady
	}
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" {
		return admin.Summary{}, deps.Errors.InvalidRequest
	}

	uid := formatID(userID)
	if err := deps.Store.Users().UpdateProfile(ctx, userID, name, phone, deps.Now()); err != nil {
		deps.EmitAudit(ctx, deps.Events.ProfileUpdate, false, uid, "", err, nil)
		if errors.Is(err, admin.ErrNotFound) {
			return admin.Summary{}, deps.Errors.UserNotFound
		}
		return admin.Summary{}, deps.storeError(err)
	}
	deps.EmitAudit(ctx, deps.Events.ProfileUpdate, true, uid, "", nil, nil)
	return RunProfile(ctx, userID, deps)
}

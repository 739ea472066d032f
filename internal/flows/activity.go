package flows

import (
	"context"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/permission"
)

// RunListActivity reads the activity log for a viewer holding
// admin:activity_view. Filtering happens in the store.
func RunListActivity(ctx context.Context, viewerID int64, f admin.ActivityFilter, deps ApprovalDeps) ([]admin.ActivityEntry, error) {
	deps.Runtime.normalize()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, deps.invalid("from must be before to")
	}
	if f.UserID < 0 || f.Limit < 0 {
		return nil, deps.invalid("user id and limit must not be negative")
	}

	viewer, err := deps.actor(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if !deps.HasPermission(viewer.Role, permission.ViewActivity) {
		return nil, deps.Errors.PermissionDenied
	}

	if f.Limit == 0 || f.Limit > deps.ListLimit {
		f.Limit = deps.ListLimit
	}
	out, err := deps.Store.Activity().List(ctx, f)
	if err != nil {
		return nil, deps.storeError(err)
	}
	return out, nil
}

// StateResult is the store shape behind the exported gauges.
type StateResult struct {
	Requests       map[admin.Status]int64
	ActiveSessions int64
}

// RunState counts requests per status, zero-filling every known status, and
// the sessions live at now.
func RunState(ctx context.Context, rt Runtime) (StateResult, error) {
	rt.normalize()
	if !rt.Ready() {
		return StateResult{}, rt.Errors.EngineNotReady
	}

	counts, err := rt.Store.Requests().CountByStatus(ctx)
	if err != nil {
		return StateResult{}, rt.storeError(err)
	}
	requests := map[admin.Status]int64{
		admin.StatusPending:  counts[admin.StatusPending],
		admin.StatusApproved: counts[admin.StatusApproved],
		admin.StatusRejected: counts[admin.StatusRejected],
	}

	sessions, err := rt.Store.Sessions().CountActive(ctx, rt.Now())
	if err != nil {
		return StateResult{}, rt.storeError(err)
	}
	return StateResult{Requests: requests, ActiveSessions: sessions}, nil
}

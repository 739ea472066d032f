package adminauth

import (
	"context"

	"github.com/MrEthical07/adminauth/admin"
)

// ListActivity returns activity-log entries matching f, newest first. The
// viewer needs admin:activity_view.
func (e *Engine) ListActivity(ctx context.Context, viewerID int64, f admin.ActivityFilter) ([]admin.ActivityEntry, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.flows.ListActivity(ctx, viewerID, f)
}

// StateSnapshot is the point-in-time shape of the store: requests per
// status and live sessions. Exporters read it on every scrape.
type StateSnapshot struct {
	Requests       map[admin.Status]int64
	ActiveSessions int64
}

// StateSnapshot counts requests by status and sessions that are active and
// unexpired now. Every known status is present in the result.
func (e *Engine) StateSnapshot(ctx context.Context) (StateSnapshot, error) {
	if !e.ready() {
		return StateSnapshot{}, ErrEngineNotReady
	}
	res, err := e.flows.State(ctx)
	if err != nil {
		return StateSnapshot{}, err
	}
	return StateSnapshot(res), nil
}

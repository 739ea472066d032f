package adminauth

import (
	"context"

	"github.com/MrEthical07/adminauth/admin"
)

// SubmitRequest records action as a pending request on behalf of
// requesterID. Nothing is applied until a second user approves it.
func (e *Engine) SubmitRequest(ctx context.Context, requesterID int64, action admin.Action) (admin.PendingRequest, error) {
	if !e.ready() {
		return admin.PendingRequest{}, ErrEngineNotReady
	}
	return e.flows.SubmitRequest(ctx, requesterID, action)
}

// ResolveRequest approves or rejects request requestID. Exactly one of any
// number of concurrent calls on the same request succeeds; the rest fail with
// ErrRequestAlreadyResolved. An approval applies the action in the same
// transaction as the status change.
func (e *Engine) ResolveRequest(ctx context.Context, requestID int64, decision admin.Decision, reviewerID int64) (*ResolveResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.ResolveRequest(ctx, requestID, decision, reviewerID)
	if err != nil {
		return nil, err
	}
	return &ResolveResult{Request: res.Request, Delivered: res.Delivered}, nil
}

// ListRequests returns requests in status, pending when status is empty.
func (e *Engine) ListRequests(ctx context.Context, viewerID int64, status admin.Status) ([]admin.PendingRequest, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.flows.ListRequests(ctx, viewerID, status)
}

// GetRequest returns request requestID in any status. The viewer needs the
// same permission as for ListRequests.
func (e *Engine) GetRequest(ctx context.Context, viewerID, requestID int64) (admin.PendingRequest, error) {
	if !e.ready() {
		return admin.PendingRequest{}, ErrEngineNotReady
	}
	return e.flows.GetRequest(ctx, viewerID, requestID)
}

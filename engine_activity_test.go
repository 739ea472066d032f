package adminauth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

// boundSink forwards to a sink attached after the engine is built, so the
// activity log can share the engine's store.
type boundSink struct {
	mu sync.Mutex
	to AuditSink
}

func (b *boundSink) Emit(ctx context.Context, ev AuditEvent) {
	b.mu.Lock()
	to := b.to
	b.mu.Unlock()
	if to != nil {
		to.Emit(ctx, ev)
	}
}

func newActivityEnv(t *testing.T) *testEnv {
	t.Helper()

	sink := &boundSink{}
	env := newTestEnvWithSink(t, auditConfig(), sink)
	sink.mu.Lock()
	sink.to = sqlstore.NewActivitySink(env.store)
	sink.mu.Unlock()
	return env
}

// waitActivity polls until at least want entries match f.
func waitActivity(t *testing.T, env *testEnv, viewerID int64, f admin.ActivityFilter, want int) []admin.ActivityEntry {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := env.engine.ListActivity(context.Background(), viewerID, f)
		if err != nil {
			t.Fatalf("ListActivity failed: %v", err)
		}
		if len(got) >= want || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListActivityReadsAuditTrail(t *testing.T) {
	env := newActivityEnv(t)
	ctx := context.Background()
	maker, checker, _ := env.staff(t)

	if _, err := env.engine.SubmitCredentials(ctx, maker.Email, "Wrong-password-1!"); err == nil {
		t.Fatal("expected wrong password to fail")
	}
	env.login(t, maker.Email)

	byMaker := admin.ActivityFilter{UserID: maker.ID}
	entries := waitActivity(t, env, checker.ID, byMaker, 4)
	if len(entries) < 4 {
		t.Fatalf("expected failed attempt, enrollment and login entries, got %+v", entries)
	}
	for _, e := range entries {
		if e.UserID != strconv.FormatInt(maker.ID, 10) {
			t.Fatalf("user filter leaked entry %+v", e)
		}
	}
	if entries[len(entries)-1].EventType != auditEventLoginCredentials || entries[len(entries)-1].Success {
		t.Fatalf("expected oldest entry to be the failed credentials attempt, got %+v", entries[len(entries)-1])
	}

	failed, err := env.engine.ListActivity(ctx, checker.ID, admin.ActivityFilter{
		UserID:    maker.ID,
		EventType: auditEventLoginSecondFactor,
	})
	if err != nil {
		t.Fatalf("ListActivity failed: %v", err)
	}
	if len(failed) != 1 || !failed[0].Success {
		t.Fatalf("expected one successful second-factor entry, got %+v", failed)
	}

	future, err := env.engine.ListActivity(ctx, checker.ID, admin.ActivityFilter{From: env.clock.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("ListActivity failed: %v", err)
	}
	if len(future) != 0 {
		t.Fatalf("expected empty window, got %d entries", len(future))
	}
}

func TestListActivityPermissionAndValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	maker, checker, viewer := env.staff(t)

	for _, id := range []int64{maker.ID, viewer.ID} {
		if _, err := env.engine.ListActivity(ctx, id, admin.ActivityFilter{}); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("viewer %d: expected ErrPermissionDenied, got %v", id, err)
		}
	}

	now := env.clock.Now()
	bad := []admin.ActivityFilter{
		{From: now, To: now},
		{From: now, To: now.Add(-time.Minute)},
		{UserID: -1},
		{Limit: -5},
	}
	for _, f := range bad {
		if _, err := env.engine.ListActivity(ctx, checker.ID, f); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%+v: expected ErrInvalidRequest, got %v", f, err)
		}
	}

	if _, err := env.engine.ListActivity(ctx, checker.ID, admin.ActivityFilter{Limit: 100000}); err != nil {
		t.Fatalf("expected oversized limit to be clamped, got %v", err)
	}
}

func TestStateSnapshotCountsRequestsAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	maker, checker, _ := env.staff(t)

	state, err := env.engine.StateSnapshot(ctx)
	if err != nil {
		t.Fatalf("StateSnapshot failed: %v", err)
	}
	for _, st := range []admin.Status{admin.StatusPending, admin.StatusApproved, admin.StatusRejected} {
		v, ok := state.Requests[st]
		if !ok || v != 0 {
			t.Fatalf("expected zero-filled %s, got %v (present=%v)", st, v, ok)
		}
	}
	if state.ActiveSessions != 0 {
		t.Fatalf("expected no sessions, got %d", state.ActiveSessions)
	}

	var ids []int64
	for _, email := range []string{"one@example.com", "two@example.com"} {
		req, err := env.engine.SubmitRequest(ctx, maker.ID, admin.CreateUser{Name: email, Email: email, Role: permission.RoleViewer})
		if err != nil {
			t.Fatalf("SubmitRequest failed: %v", err)
		}
		ids = append(ids, req.ID)
	}
	if _, err := env.engine.ResolveRequest(ctx, ids[0], admin.DecisionReject, checker.ID); err != nil {
		t.Fatalf("ResolveRequest failed: %v", err)
	}
	makerSession := env.login(t, maker.Email)
	env.login(t, checker.Email)

	state, err = env.engine.StateSnapshot(ctx)
	if err != nil {
		t.Fatalf("StateSnapshot failed: %v", err)
	}
	if state.Requests[admin.StatusPending] != 1 || state.Requests[admin.StatusRejected] != 1 {
		t.Fatalf("unexpected request counts %+v", state.Requests)
	}
	if state.ActiveSessions != 2 {
		t.Fatalf("expected two sessions, got %d", state.ActiveSessions)
	}

	if err := env.engine.Logout(ctx, makerSession.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	state, err = env.engine.StateSnapshot(ctx)
	if err != nil {
		t.Fatalf("StateSnapshot failed: %v", err)
	}
	if state.ActiveSessions != 1 {
		t.Fatalf("expected one session after logout, got %d", state.ActiveSessions)
	}
}

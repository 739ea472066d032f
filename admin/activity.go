package admin

import (
	"context"
	"time"
)

// ActivityEntry is one persisted audit event. UserID and SessionID are kept
// as recorded, so events for unknown accounts still carry an empty id.
type ActivityEntry struct {
	ID        int64
	EventType string
	UserID    string
	SessionID string
	IP        string
	Success   bool
	Error     string
	Details   map[string]string
	CreatedAt time.Time
}

// ActivityFilter narrows an activity query. Zero fields match everything;
// From is inclusive and To exclusive.
type ActivityFilter struct {
	UserID    int64
	EventType string
	From      time.Time
	To        time.Time
	Limit     int
}

// ActivityRepository reads the activity log, newest entries first.
type ActivityRepository interface {
	List(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error)
}

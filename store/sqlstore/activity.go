package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/internal/audit"
)

// ActivitySink persists audit events into activity_log. It is called from
// the audit dispatcher goroutine, so write failures are logged, not returned.
type ActivitySink struct {
	store *Store
}

// NewActivitySink returns a sink writing through store.
func NewActivitySink(store *Store) *ActivitySink {
	return &ActivitySink{store: store}
}

func (a *ActivitySink) Emit(ctx context.Context, event audit.Event) {
	if a == nil || a.store == nil {
		return
	}

	var details sql.NullString
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err == nil {
			details = sql.NullString{String: string(raw), Valid: true}
		}
	}

	if _, err := a.store.exec(ctx,
		`INSERT INTO activity_log (event_type, user_id, session_id, ip_address, success, error, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventType, event.UserID, event.SessionID, event.IP, event.Success, event.Error, details, utc(event.Timestamp),
	); err != nil {
		a.store.logger.Warn("activity log write failed", zap.String("event_type", event.EventType), zap.Error(err))
	}
}

const (
	activityColumns      = `id, event_type, user_id, session_id, ip_address, success, error, details, created_at`
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
)

type activityRow struct {
	ID        int64          `db:"id"`
	EventType string         `db:"event_type"`
	UserID    string         `db:"user_id"`
	SessionID string         `db:"session_id"`
	IP        string         `db:"ip_address"`
	Success   bool           `db:"success"`
	Error     string         `db:"error"`
	Details   sql.NullString `db:"details"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r activityRow) toDomain() admin.ActivityEntry {
	e := admin.ActivityEntry{
		ID:        r.ID,
		EventType: r.EventType,
		UserID:    r.UserID,
		SessionID: r.SessionID,
		IP:        r.IP,
		Success:   r.Success,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
	if r.Details.Valid && r.Details.String != "" {
		// Rows written by older builds may hold non-object JSON; keep the entry.
		_ = json.Unmarshal([]byte(r.Details.String), &e.Details)
	}
	return e
}

type activityRepository struct {
	s *Store
}

func (s *Store) Activity() admin.ActivityRepository { return activityRepository{s} }

// List applies every filter in SQL and returns newest entries first.
func (r activityRepository) List(ctx context.Context, f admin.ActivityFilter) ([]admin.ActivityEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID > 0 {
		where = append(where, "user_id = ?")
		args = append(args, strconv.FormatInt(f.UserID, 10))
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, utc(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, utc(f.To))
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	query := "SELECT " + activityColumns + " FROM activity_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	var rows []activityRow
	if err := r.s.selectRows(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]admin.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

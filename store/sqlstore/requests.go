package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/admin"
)

const requestColumns = `id, action, target_user_id, payload, requested_by, status, reviewed_by, reviewed_at, created_at`

type requestRow struct {
	ID           int64         `db:"id"`
	Action       string        `db:"action"`
	TargetUserID sql.NullInt64 `db:"target_user_id"`
	Payload      []byte        `db:"payload"`
	RequestedBy  int64         `db:"requested_by"`
	Status       string        `db:"status"`
	ReviewedBy   sql.NullInt64 `db:"reviewed_by"`
	ReviewedAt   sql.NullTime  `db:"reviewed_at"`
	CreatedAt    time.Time     `db:"created_at"`
}

func (r requestRow) toDomain() (admin.PendingRequest, error) {
	action, err := admin.DecodeAction(admin.ActionKind(r.Action), r.Payload)
	if err != nil {
		return admin.PendingRequest{}, fmt.Errorf("request %d: %w", r.ID, err)
	}
	req := admin.PendingRequest{
		ID:          r.ID,
		Action:      action,
		RequestedBy: r.RequestedBy,
		Status:      admin.Status(r.Status),
		CreatedAt:   r.CreatedAt,
	}
	if r.ReviewedBy.Valid {
		id := r.ReviewedBy.Int64
		req.ReviewedBy = &id
	}
	if r.ReviewedAt.Valid {
		at := r.ReviewedAt.Time
		req.ReviewedAt = &at
	}
	return req, nil
}

type requestRepository struct {
	s *Store
}

func (r requestRepository) Create(ctx context.Context, req admin.PendingRequest) (admin.PendingRequest, error) {
	kind, payload, err := admin.EncodeAction(req.Action)
	if err != nil {
		return admin.PendingRequest{}, err
	}
	var target sql.NullInt64
	if id, ok := admin.TargetOf(req.Action); ok {
		target = sql.NullInt64{Int64: id, Valid: true}
	}
	createdAt := utc(req.CreatedAt)

	var id int64
	if err := r.s.get(ctx, &id,
		`INSERT INTO admin_users_pending (action, target_user_id, payload, requested_by, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		string(kind), target, string(payload), req.RequestedBy, string(admin.StatusPending), createdAt,
	); err != nil {
		return admin.PendingRequest{}, fmt.Errorf("create request: %w", err)
	}

	req.ID = id
	req.Status = admin.StatusPending
	req.ReviewedBy = nil
	req.ReviewedAt = nil
	req.CreatedAt = createdAt
	return req, nil
}

func (r requestRepository) Get(ctx context.Context, id int64) (admin.PendingRequest, error) {
	var row requestRow
	if err := r.s.get(ctx, &row, "SELECT "+requestColumns+" FROM admin_users_pending WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return admin.PendingRequest{}, admin.ErrNotFound
		}
		return admin.PendingRequest{}, fmt.Errorf("get request: %w", err)
	}
	return row.toDomain()
}

func (r requestRepository) List(ctx context.Context, status admin.Status, limit int) ([]admin.PendingRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []requestRow
	if err := r.s.selectRows(ctx, &rows,
		"SELECT "+requestColumns+" FROM admin_users_pending WHERE status = ? ORDER BY created_at, id LIMIT ?",
		string(status), limit); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]admin.PendingRequest, 0, len(rows))
	for _, row := range rows {
		req, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func (r requestRepository) MarkResolved(ctx context.Context, id int64, status admin.Status, reviewerID int64, at time.Time) error {
	if status != admin.StatusApproved && status != admin.StatusRejected {
		return fmt.Errorf("mark resolved: invalid status %q", status)
	}
	n, err := r.s.exec(ctx,
		"UPDATE admin_users_pending SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ? AND status = ?",
		string(status), reviewerID, utc(at), id, string(admin.StatusPending))
	if err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := r.s.get(ctx, &exists, "SELECT COUNT(*) FROM admin_users_pending WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	if exists == 0 {
		return admin.ErrNotFound
	}
	return admin.ErrAlreadyResolved
}

func (r requestRepository) CountByStatus(ctx context.Context) (map[admin.Status]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}
	if err := r.s.selectRows(ctx, &rows,
		"SELECT status, COUNT(*) AS n FROM admin_users_pending GROUP BY status"); err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	out := make(map[admin.Status]int64, len(rows))
	for _, row := range rows {
		out[admin.Status(row.Status)] = row.N
	}
	return out, nil
}

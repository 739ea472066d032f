package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/admin"
)

const sessionColumns = `id, user_id, token_hash, issued_at, expires_at, source_ip, source_platform, is_active`

type sessionRow struct {
	ID             string    `db:"id"`
	UserID         int64     `db:"user_id"`
	TokenHash      string    `db:"token_hash"`
	IssuedAt       time.Time `db:"issued_at"`
	ExpiresAt      time.Time `db:"expires_at"`
	SourceIP       string    `db:"source_ip"`
	SourcePlatform string    `db:"source_platform"`
	Active         bool      `db:"is_active"`
}

func (r sessionRow) toDomain() admin.LoginSession {
	return admin.LoginSession{
		ID:               r.ID,
		UserID:           r.UserID,
		TokenHash:        r.TokenHash,
		IssuedAt:         r.IssuedAt,
		ExpiresAt:        r.ExpiresAt,
		SourceIP:         r.SourceIP,
		ClientDescriptor: r.SourcePlatform,
		Active:           r.Active,
	}
}

type sessionRepository struct {
	s *Store
}

func (r sessionRepository) Create(ctx context.Context, sess admin.LoginSession) error {
	_, err := r.s.exec(ctx,
		`INSERT INTO login_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.TokenHash, utc(sess.IssuedAt), utc(sess.ExpiresAt),
		sess.SourceIP, sess.ClientDescriptor, true,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (admin.LoginSession, error) {
	var row sessionRow
	if err := r.s.get(ctx, &row, "SELECT "+sessionColumns+" FROM login_sessions WHERE token_hash = ?", tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return admin.LoginSession{}, admin.ErrNotFound
		}
		return admin.LoginSession{}, fmt.Errorf("get session: %w", err)
	}
	return row.toDomain(), nil
}

func (r sessionRepository) Deactivate(ctx context.Context, tokenHash string, at time.Time) (bool, error) {
	n, err := r.s.exec(ctx,
		"UPDATE login_sessions SET is_active = ?, expires_at = ? WHERE token_hash = ? AND is_active = ?",
		false, utc(at), tokenHash, true)
	if err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}
	return n > 0, nil
}

func (r sessionRepository) DeactivateUser(ctx context.Context, userID int64, keepTokenHash string, at time.Time) (int64, error) {
	n, err := r.s.exec(ctx,
		"UPDATE login_sessions SET is_active = ?, expires_at = ? WHERE user_id = ? AND is_active = ? AND token_hash <> ?",
		false, utc(at), userID, true, keepTokenHash)
	if err != nil {
		return 0, fmt.Errorf("deactivate user sessions: %w", err)
	}
	return n, nil
}

func (r sessionRepository) ListActive(ctx context.Context, userID int64, now time.Time) ([]admin.LoginSession, error) {
	var rows []sessionRow
	if err := r.s.selectRows(ctx, &rows,
		"SELECT "+sessionColumns+" FROM login_sessions WHERE user_id = ? AND is_active = ? AND expires_at > ? ORDER BY issued_at DESC",
		userID, true, utc(now)); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]admin.LoginSession, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r sessionRepository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	if err := r.s.get(ctx, &n,
		"SELECT COUNT(*) FROM login_sessions WHERE is_active = ? AND expires_at > ?",
		true, utc(now)); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/admin"
)

const userColumns = `id, email, name, phone, password_hash, role, active, blocked,
	totp_secret, first_login, reset_token_hash, reset_token_expires_at, created_at, updated_at`

type userRow struct {
	ID                  int64          `db:"id"`
	Email               string         `db:"email"`
	Name                string         `db:"name"`
	Phone               string         `db:"phone"`
	PasswordHash        string         `db:"password_hash"`
	Role                string         `db:"role"`
	Active              bool           `db:"active"`
	Blocked             bool           `db:"blocked"`
	TOTPSecret          sql.NullString `db:"totp_secret"`
	FirstLogin          bool           `db:"first_login"`
	ResetTokenHash      sql.NullString `db:"reset_token_hash"`
	ResetTokenExpiresAt sql.NullTime   `db:"reset_token_expires_at"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() admin.User {
	u := admin.User{
		ID:             r.ID,
		Email:          r.Email,
		Name:           r.Name,
		Phone:          r.Phone,
		PasswordHash:   r.PasswordHash,
		Role:           r.Role,
		Active:         r.Active,
		Blocked:        r.Blocked,
		TOTPSecret:     r.TOTPSecret.String,
		FirstLogin:     r.FirstLogin,
		ResetTokenHash: r.ResetTokenHash.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ResetTokenExpiresAt.Valid {
		at := r.ResetTokenExpiresAt.Time
		u.ResetTokenExpiresAt = &at
	}
	return u
}

type userRepository struct {
	s *Store
}

func (r userRepository) getOne(ctx context.Context, op, query string, args ...any) (admin.User, error) {
	var row userRow
	if err := r.s.get(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return admin.User{}, admin.ErrNotFound
		}
		return admin.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return row.toDomain(), nil
}

func (r userRepository) Get(ctx context.Context, id int64) (admin.User, error) {
	return r.getOne(ctx, "get user", "SELECT "+userColumns+" FROM admin_users WHERE id = ?", id)
}

func (r userRepository) GetByEmail(ctx context.Context, email string) (admin.User, error) {
	return r.getOne(ctx, "get user by email",
		"SELECT "+userColumns+" FROM admin_users WHERE email = ?", admin.NormalizeEmail(email))
}

func (r userRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (admin.User, error) {
	return r.getOne(ctx, "get user by reset token",
		"SELECT "+userColumns+" FROM admin_users WHERE reset_token_hash = ? AND reset_token_expires_at > ?",
		tokenHash, utc(now))
}

func (r userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := r.s.get(ctx, &n, "SELECT COUNT(*) FROM admin_users WHERE email = ?", admin.NormalizeEmail(email)); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return n > 0, nil
}

func (r userRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.s.get(ctx, &n, "SELECT COUNT(*) FROM admin_users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r userRepository) Create(ctx context.Context, u admin.NewUser) (admin.User, error) {
	now := utc(u.CreatedAt)
	email := admin.NormalizeEmail(u.Email)

	var id int64
	err := r.s.get(ctx, &id,
		`INSERT INTO admin_users (email, name, phone, password_hash, role, active, blocked, first_login, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		email, u.Name, u.Phone, u.PasswordHash, u.Role, true, false, u.FirstLogin, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return admin.User{}, admin.ErrDuplicateEmail
		}
		return admin.User{}, fmt.Errorf("create user: %w", err)
	}

	return admin.User{
		ID:           id,
		Email:        email,
		Name:         u.Name,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Active:       true,
		FirstLogin:   u.FirstLogin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r userRepository) EnrollTOTP(ctx context.Context, id int64, secret string, now time.Time) (bool, error) {
	n, err := r.s.exec(ctx,
		"UPDATE admin_users SET totp_secret = ?, updated_at = ? WHERE id = ? AND totp_secret IS NULL",
		secret, utc(now), id)
	if err != nil {
		return false, fmt.Errorf("enroll totp: %w", err)
	}
	return n == 1, nil
}

func (r userRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt, now time.Time) error {
	n, err := r.s.exec(ctx,
		"UPDATE admin_users SET reset_token_hash = ?, reset_token_expires_at = ?, updated_at = ? WHERE id = ?",
		tokenHash, utc(expiresAt), utc(now), id)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if n == 0 {
		return admin.ErrNotFound
	}
	return nil
}

func (r userRepository) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error) {
	var id int64
	err := r.s.get(ctx, &id,
		`UPDATE admin_users
		 SET password_hash = ?, reset_token_hash = NULL, reset_token_expires_at = NULL, first_login = ?, updated_at = ?
		 WHERE reset_token_hash = ? AND reset_token_expires_at > ?
		 RETURNING id`,
		passwordHash, false, utc(now), tokenHash, utc(now),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, admin.ErrNotFound
		}
		return 0, fmt.Errorf("redeem reset token: %w", err)
	}
	return id, nil
}

func (r userRepository) SetPassword(ctx context.Context, id int64, passwordHash string, firstLogin bool, now time.Time) error {
	return r.updateOne(ctx, "set password",
		"UPDATE admin_users SET password_hash = ?, first_login = ?, updated_at = ? WHERE id = ?",
		passwordHash, firstLogin, utc(now), id)
}

func (r userRepository) UpdateProfile(ctx context.Context, id int64, name, phone string, now time.Time) error {
	return r.updateOne(ctx, "update profile",
		"UPDATE admin_users SET name = ?, phone = ?, updated_at = ? WHERE id = ?",
		name, phone, utc(now), id)
}

func (r userRepository) SetBlocked(ctx context.Context, id int64, blocked bool, now time.Time) error {
	return r.updateOne(ctx, "set blocked",
		"UPDATE admin_users SET blocked = ?, updated_at = ? WHERE id = ?",
		blocked, utc(now), id)
}

func (r userRepository) SetRole(ctx context.Context, id int64, role string, now time.Time) error {
	return r.updateOne(ctx, "set role",
		"UPDATE admin_users SET role = ?, updated_at = ? WHERE id = ?",
		role, utc(now), id)
}

func (r userRepository) AppendPasswordHistory(ctx context.Context, id int64, passwordHash string, at time.Time) error {
	if _, err := r.s.exec(ctx,
		"INSERT INTO password_history (user_id, password_hash, created_at) VALUES (?, ?, ?)",
		id, passwordHash, utc(at)); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}
	return nil
}

func (r userRepository) RecentPasswordHashes(ctx context.Context, id int64, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var hashes []string
	if err := r.s.selectRows(ctx, &hashes,
		"SELECT password_hash FROM password_history WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		id, limit); err != nil {
		return nil, fmt.Errorf("list password history: %w", err)
	}
	return hashes, nil
}

func (r userRepository) updateOne(ctx context.Context, op, query string, args ...any) error {
	n, err := r.s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return admin.ErrNotFound
	}
	return nil
}

package admin

import (
	"strings"
	"time"
)

// User is an administrative identity record.
type User struct {
	ID           int64
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         string
	Active       bool
	Blocked      bool
	TOTPSecret   string
	FirstLogin   bool

	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanLogin reports whether the account is allowed to start a login.
func (u User) CanLogin() bool {
	return u.Active && !u.Blocked
}

// TOTPEnrolled reports whether a second-factor secret has been stored.
func (u User) TOTPEnrolled() bool {
	return u.TOTPSecret != ""
}

// ResetTokenLive reports whether a reset token is present and unexpired at now.
// A token with a past expiry is treated as absent.
func (u User) ResetTokenLive(now time.Time) bool {
	if u.ResetTokenHash == "" || u.ResetTokenExpiresAt == nil {
		return false
	}
	return now.Before(*u.ResetTokenExpiresAt)
}

// Summary returns the non-sensitive view of the user.
func (u User) Summary() Summary {
	return Summary{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Phone:      u.Phone,
		Role:       u.Role,
		Active:     u.Active,
		Blocked:    u.Blocked,
		FirstLogin: u.FirstLogin,
	}
}

// Summary is the user view returned to callers after login and by profile reads.
type Summary struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role"`
	Active     bool   `json:"active"`
	Blocked    bool   `json:"blocked"`
	FirstLogin bool   `json:"first_login"`
}

// NewUser carries the fields required to insert a user row.
type NewUser struct {
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         string
	FirstLogin   bool
	CreatedAt    time.Time
}

// NormalizeEmail lowercases and trims an email address. Lookups and inserts
// always go through it so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

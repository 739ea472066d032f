package admin

import (
	"context"
	"time"
)

// UserRepository is the credential store for administrative accounts.
// Every mutating method is a single conditional statement.
type UserRepository interface {
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// GetByResetToken returns the user holding tokenHash with an expiry after now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u NewUser) (User, error)

	// EnrollTOTP stores secret only when no secret is present. It reports
	// whether the write happened.
	EnrollTOTP(ctx context.Context, id int64, secret string, now time.Time) (bool, error)
	// SetResetToken overwrites any earlier token for the user.
	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt, now time.Time) error
	// RedeemResetToken writes passwordHash, clears the token pair and the
	// first-login flag where tokenHash matches and has not expired. It returns
	// the affected user id or ErrNotFound.
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (int64, error)

	SetPassword(ctx context.Context, id int64, passwordHash string, firstLogin bool, now time.Time) error
	UpdateProfile(ctx context.Context, id int64, name, phone string, now time.Time) error
	SetBlocked(ctx context.Context, id int64, blocked bool, now time.Time) error
	SetRole(ctx context.Context, id int64, role string, now time.Time) error

	AppendPasswordHistory(ctx context.Context, id int64, passwordHash string, at time.Time) error
	RecentPasswordHashes(ctx context.Context, id int64, limit int) ([]string, error)
}

// SessionRepository is the session ledger.
type SessionRepository interface {
	Create(ctx context.Context, s LoginSession) error
	GetByTokenHash(ctx context.Context, tokenHash string) (LoginSession, error)
	// Deactivate marks an active row inactive and stamps its expiry. It reports
	// whether a row changed; a second call is a no-op.
	Deactivate(ctx context.Context, tokenHash string, at time.Time) (bool, error)
	// DeactivateUser deactivates every active row of the user except keepTokenHash.
	DeactivateUser(ctx context.Context, userID int64, keepTokenHash string, at time.Time) (int64, error)
	ListActive(ctx context.Context, userID int64, now time.Time) ([]LoginSession, error)
	// CountActive counts rows that are active and unexpired at now, across users.
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// RequestRepository stores maker-checker requests.
type RequestRepository interface {
	Create(ctx context.Context, r PendingRequest) (PendingRequest, error)
	Get(ctx context.Context, id int64) (PendingRequest, error)
	List(ctx context.Context, status Status, limit int) ([]PendingRequest, error)
	// MarkResolved moves a pending request to status. It returns ErrNotFound
	// when the id is unknown and ErrAlreadyResolved when the row is no longer
	// pending.
	MarkResolved(ctx context.Context, id int64, status Status, reviewerID int64, at time.Time) error
	// CountByStatus returns the number of requests per status. Statuses with
	// no rows are absent.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// Store groups the repositories and scopes them to a transaction.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Requests() RequestRepository
	Activity() ActivityRepository
	// WithinTx runs fn against repositories bound to one transaction. A non-nil
	// return from fn rolls the transaction back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

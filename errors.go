package adminauth

import "errors"

var (
	// ErrInvalidCredentials covers an unknown email, a wrong password and,
	// unless Login.RevealInactive is set, a disabled account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned for inactive or blocked accounts when
	// Login.RevealInactive is true.
	ErrAccountInactive = errors.New("account inactive")
	// ErrInvalidSecondFactor is returned for a wrong, replayed or unexpected code.
	ErrInvalidSecondFactor = errors.New("invalid second factor code")
	// ErrTokenInvalid is returned when a bearer token fails to decode or verify.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrSessionExpired is returned when the inactivity ceiling has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned when the session row is absent, inactive
	// or past its expiry.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrTokenExpiredOrUnknown is returned when a reset token does not match a
	// live token.
	ErrTokenExpiredOrUnknown = errors.New("reset token expired or unknown")
	// ErrRequestNotFound is returned for an unknown pending request id.
	ErrRequestNotFound = errors.New("request not found")
	// ErrRequestAlreadyResolved is returned when a request is no longer pending.
	ErrRequestAlreadyResolved = errors.New("request already resolved")
	// ErrPermissionDenied is returned when the acting user lacks the permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDuplicateEmail is returned when the email belongs to an existing user.
	ErrDuplicateEmail = errors.New("email already in use")

	ErrEngineNotReady          = errors.New("engine not initialized")
	ErrLoginRateLimited        = errors.New("login rate limited")
	ErrSecondFactorRateLimited = errors.New("second factor attempts exceeded")
	ErrResetRateLimited        = errors.New("password reset rate limited")
	ErrPasswordPolicy          = errors.New("password policy violation")
	ErrPasswordReuse           = errors.New("password was used recently")
	ErrInvalidRequest          = errors.New("invalid request")
	// ErrSelfApproval is returned when a reviewer resolves their own request
	// and Approval.RequireDistinctReviewer is set.
	ErrSelfApproval = errors.New("requester cannot resolve own request")
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)

package adminauth

import (
	"time"

	"github.com/MrEthical07/adminauth/admin"
)

// Clock supplies the current time. Tests inject a fixed clock with
// Builder.WithClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Enrollment carries the artifacts a user needs to register the account in
// an authenticator app. It is returned once, on the login that created it.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"otpauth_uri"`
	// QRCode is a data:image/png;base64 URL encoding URI.
	QRCode string `json:"qr_code"`
}

// CredentialsResult is the outcome of a successful SubmitCredentials call.
// No token is issued at this stage.
type CredentialsResult struct {
	UserID               int64       `json:"user_id"`
	SecondFactorRequired bool        `json:"second_factor_required"`
	Enrollment           *Enrollment `json:"enrollment,omitempty"`
}

// LoginResult is the outcome of a successful SubmitSecondFactor call.
type LoginResult struct {
	Token      string        `json:"token"`
	SessionID  string        `json:"session_id"`
	ExpiresAt  time.Time     `json:"expires_at"`
	User       admin.Summary `json:"user"`
	FirstLogin bool          `json:"first_login"`
}

// Identity is the authenticated principal behind a validated token.
type Identity struct {
	UserID    int64
	Role      string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// TokenHash identifies the caller's own session row.
	TokenHash string
}

// ResetRequestResult is returned by RequestPasswordReset. Degraded reports
// that the token was stored but its notification could not be delivered.
type ResetRequestResult struct {
	Degraded bool `json:"-"`
}

// ResolveResult is returned by ResolveRequest. Delivered is false only when
// a generated credential failed to reach the notification sender.
type ResolveResult struct {
	Request   admin.PendingRequest
	Delivered bool
}

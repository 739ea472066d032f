package flows

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/internal"
	"github.com/MrEthical07/adminauth/notify"
)

// Errors carries the root sentinel errors into the flows.
type Errors struct {
	EngineNotReady          error
	InvalidCredentials      error
	AccountInactive         error
	InvalidSecondFactor     error
	LoginRateLimited        error
	SecondFactorRateLimited error
	TokenInvalid            error
	SessionExpired          error
	SessionRevoked          error
	TokenExpiredOrUnknown   error
	ResetRateLimited        error
	PasswordPolicy          error
	PasswordReuse           error
	InvalidRequest          error
	UserNotFound            error
	RequestNotFound         error
	RequestAlreadyResolved  error
	PermissionDenied        error
	SelfApproval            error
	DuplicateEmail          error
	StoreUnavailable        error
}

// Events carries audit event names.
type Events struct {
	LoginCredentials     string
	LoginSecondFactor    string
	TwoFactorEnrolled    string
	Logout               string
	LogoutAll            string
	PasswordResetRequest string
	PasswordResetConfirm string
	PasswordChange       string
	ProfileUpdate        string
	RequestSubmit        string
	RequestResolve       string
}

// Metrics carries metric ids.
type Metrics struct {
	LoginSuccess            int
	LoginFailure            int
	LoginRateLimited        int
	SecondFactorSuccess     int
	SecondFactorFailure     int
	SecondFactorRateLimited int
	TwoFactorEnrolled       int
	ValidateSuccess         int
	SessionExpired          int
	SessionRevoked          int
	TokenInvalid            int
	Logout                  int
	PasswordResetRequest    int
	PasswordResetSuccess    int
	PasswordResetFailure    int
	PasswordChangeSuccess   int
	PasswordChangeFailure   int
	RequestSubmitted        int
	RequestApproved         int
	RequestRejected         int
	RequestConflict         int
	NotifyFailure           int
}

// Runtime is the dependency set shared by every flow.
type Runtime struct {
	Store  admin.Store
	Now    func() time.Time
	Logger *zap.Logger

	ClientIP  func(context.Context) string
	UserAgent func(context.Context) string

	Notify    func(context.Context, notify.Message) error
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID, sessionID string, err error, meta func() map[string]string)

	Errors  Errors
	Events  Events
	Metrics Metrics
}

// Ready reports whether the shared dependencies are wired.
func (r Runtime) Ready() bool {
	return r.Store != nil && r.Now != nil
}

func (r *Runtime) normalize() {
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	if r.ClientIP == nil {
		r.ClientIP = func(context.Context) string { return "" }
	}
	if r.UserAgent == nil {
		r.UserAgent = func(context.Context) string { return "" }
	}
	if r.Notify == nil {
		r.Notify = func(context.Context, notify.Message) error { return nil }
	}
	if r.MetricInc == nil {
		r.MetricInc = func(int) {}
	}
	if r.EmitAudit == nil {
		r.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}

func (r Runtime) storeError(err error) error {
	return fmt.Errorf("%w: %v", r.Errors.StoreUnavailable, err)
}

// send delivers msg and reports whether it reached the sender. Failures are
// logged and counted, never returned.
func (r Runtime) send(ctx context.Context, msg notify.Message) bool {
	if err := r.Notify(ctx, msg); err != nil {
		r.MetricInc(r.Metrics.NotifyFailure)
		r.Logger.Warn("notification delivery failed",
			zap.String("kind", string(msg.Kind)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// HashToken returns the digest stored in place of a bearer or reset token.
func HashToken(token string) string {
	return internal.HashToken(token)
}

func formatID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}

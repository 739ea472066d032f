package internaldefs

import (
	"context"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/admin"
)

// Source is what both exporters read: the engine's counters and the store
// state behind the gauges. *adminauth.Engine implements it.
type Source interface {
	MetricsSnapshot() adminauth.MetricsSnapshot
	AuditDropped() uint64
	StateSnapshot(ctx context.Context) (adminauth.StateSnapshot, error)
}

// Gauge series read from the store on every collection.
const (
	RequestsName       = "adminauth_requests"
	RequestsHelp       = "Approval requests by status."
	ActiveSessionsName = "adminauth_active_sessions"
	ActiveSessionsHelp = "Sessions that are active and unexpired."
	StateUpName        = "adminauth_state_up"
	StateUpHelp        = "1 when the last store read for the gauges succeeded."
	AuditDroppedName   = "adminauth_audit_dropped_total"
	AuditDroppedHelp   = "Dropped audit events due to dispatcher backpressure."
)

// RequestStatuses fixes the label order of RequestsName.
var RequestStatuses = []admin.Status{admin.StatusPending, admin.StatusApproved, admin.StatusRejected}

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   adminauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: adminauth.MetricLoginSuccess, Name: "adminauth_login_success_total", Help: "Completed logins (both stages)."},
	{ID: adminauth.MetricLoginFailure, Name: "adminauth_login_failure_total", Help: "Rejected credential submissions."},
	{ID: adminauth.MetricLoginRateLimited, Name: "adminauth_login_rate_limited_total", Help: "Credential submissions refused by the login limiter."},
	{ID: adminauth.MetricSecondFactorSuccess, Name: "adminauth_second_factor_success_total", Help: "Accepted second-factor codes."},
	{ID: adminauth.MetricSecondFactorFailure, Name: "adminauth_second_factor_failure_total", Help: "Rejected second-factor submissions."},
	{ID: adminauth.MetricSecondFactorRateLimited, Name: "adminauth_second_factor_rate_limited_total", Help: "Login challenges closed after too many wrong codes."},
	{ID: adminauth.MetricTwoFactorEnrolled, Name: "adminauth_two_factor_enrolled_total", Help: "Second-factor secrets created at first login."},
	{ID: adminauth.MetricValidateSuccess, Name: "adminauth_validate_success_total", Help: "Tokens that passed both session guards."},
	{ID: adminauth.MetricSessionExpired, Name: "adminauth_session_expired_total", Help: "Tokens rejected by the inactivity guard."},
	{ID: adminauth.MetricSessionRevoked, Name: "adminauth_session_revoked_total", Help: "Tokens rejected by the session ledger."},
	{ID: adminauth.MetricTokenInvalid, Name: "adminauth_token_invalid_total", Help: "Tokens that failed signature or claim checks."},
	{ID: adminauth.MetricLogout, Name: "adminauth_logout_total", Help: "Logout calls."},
	{ID: adminauth.MetricPasswordResetRequest, Name: "adminauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: adminauth.MetricPasswordResetSuccess, Name: "adminauth_password_reset_success_total", Help: "Redeemed reset tokens."},
	{ID: adminauth.MetricPasswordResetFailure, Name: "adminauth_password_reset_failure_total", Help: "Failed reset redemptions."},
	{ID: adminauth.MetricPasswordChangeSuccess, Name: "adminauth_password_change_success_total", Help: "Successful password changes."},
	{ID: adminauth.MetricPasswordChangeFailure, Name: "adminauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: adminauth.MetricRequestSubmitted, Name: "adminauth_request_submitted_total", Help: "Pending requests recorded."},
	{ID: adminauth.MetricRequestApproved, Name: "adminauth_request_approved_total", Help: "Approved and applied requests."},
	{ID: adminauth.MetricRequestRejected, Name: "adminauth_request_rejected_total", Help: "Rejected requests."},
	{ID: adminauth.MetricRequestConflict, Name: "adminauth_request_conflict_total", Help: "Resolve calls that lost to an earlier resolution."},
	{ID: adminauth.MetricNotifyFailure, Name: "adminauth_notify_failure_total", Help: "Notifications that could not be delivered."},
}

var HistogramDefs = []HistogramDef{
	{ID: adminauth.MetricValidateLatency, Name: "adminauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds of the validate latency buckets, in
// seconds, matching the engine's bucket layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound for exporters that cannot use labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies a snapshot histogram into the fixed bucket array,
// zero-filling when raw is short.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

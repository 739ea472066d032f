package adminauth

import (
	"context"
	"errors"
)

const (
	auditEventLoginCredentials     = "login_credentials"
	auditEventLoginSecondFactor    = "login_second_factor"
	auditEventTwoFactorEnrolled    = "two_factor_enrolled"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordChange       = "password_change"
	auditEventProfileUpdate        = "profile_update"
	auditEventRequestSubmit        = "request_submit"
	auditEventRequestResolve       = "request_resolve"
)

// AuditErrorCode is the stable error label written to audit records.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive     AuditErrorCode = "account_inactive"
	auditErrInvalidSecondFactor AuditErrorCode = "invalid_second_factor"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrSessionExpired      AuditErrorCode = "session_expired"
	auditErrSessionRevoked      AuditErrorCode = "session_revoked"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrRequestNotFound     AuditErrorCode = "request_not_found"
	auditErrRequestResolved     AuditErrorCode = "request_already_resolved"
	auditErrPermissionDenied    AuditErrorCode = "permission_denied"
	auditErrSelfApproval        AuditErrorCode = "self_approval"
	auditErrInvalidRequest      AuditErrorCode = "invalid_request"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrInvalidSecondFactor):
		return auditErrInvalidSecondFactor
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrSecondFactorRateLimited),
		errors.Is(err, ErrResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpiredOrUnknown):
		return auditErrInvalidToken
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrRequestNotFound):
		return auditErrRequestNotFound
	case errors.Is(err, ErrRequestAlreadyResolved):
		return auditErrRequestResolved
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrSelfApproval):
		return auditErrSelfApproval
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrDuplicateEmail):
		return auditErrDuplicate
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

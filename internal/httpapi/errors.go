package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth"
)

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEntry struct {
	err    error
	status int
	code   string
	// detail exposes the wrapped message, for errors that carry caller
	// feedback such as policy violations.
	detail bool
}

// errorTable is matched in order with errors.Is. ErrInvalidRequest comes
// before ErrUserNotFound because validation wraps both.
var errorTable = []errorEntry{
	{err: adminauth.ErrInvalidRequest, status: http.StatusBadRequest, code: "invalid_request", detail: true},
	{err: adminauth.ErrPasswordPolicy, status: http.StatusBadRequest, code: "password_policy", detail: true},
	{err: adminauth.ErrPasswordReuse, status: http.StatusBadRequest, code: "password_reuse"},
	{err: adminauth.ErrTokenExpiredOrUnknown, status: http.StatusBadRequest, code: "reset_token_invalid"},
	{err: adminauth.ErrInvalidCredentials, status: http.StatusUnauthorized, code: "invalid_credentials"},
	{err: adminauth.ErrInvalidSecondFactor, status: http.StatusUnauthorized, code: "invalid_second_factor"},
	{err: adminauth.ErrTokenInvalid, status: http.StatusUnauthorized, code: "token_invalid"},
	{err: adminauth.ErrSessionExpired, status: http.StatusUnauthorized, code: "session_expired"},
	{err: adminauth.ErrSessionRevoked, status: http.StatusUnauthorized, code: "session_revoked"},
	{err: adminauth.ErrAccountInactive, status: http.StatusForbidden, code: "account_inactive"},
	{err: adminauth.ErrPermissionDenied, status: http.StatusForbidden, code: "permission_denied"},
	{err: adminauth.ErrSelfApproval, status: http.StatusForbidden, code: "self_approval"},
	{err: adminauth.ErrUserNotFound, status: http.StatusNotFound, code: "user_not_found"},
	{err: adminauth.ErrRequestNotFound, status: http.StatusNotFound, code: "request_not_found"},
	{err: adminauth.ErrRequestAlreadyResolved, status: http.StatusConflict, code: "request_already_resolved"},
	{err: adminauth.ErrDuplicateEmail, status: http.StatusConflict, code: "duplicate_email"},
	{err: adminauth.ErrLoginRateLimited, status: http.StatusTooManyRequests, code: "login_rate_limited"},
	{err: adminauth.ErrSecondFactorRateLimited, status: http.StatusTooManyRequests, code: "second_factor_rate_limited"},
	{err: adminauth.ErrResetRateLimited, status: http.StatusTooManyRequests, code: "reset_rate_limited"},
	{err: adminauth.ErrStoreUnavailable, status: http.StatusServiceUnavailable, code: "unavailable"},
	{err: adminauth.ErrEngineNotReady, status: http.StatusServiceUnavailable, code: "unavailable"},
}

// statusFor maps an engine error to its HTTP status, code and client message.
// Unknown errors become a 500 with a generic message.
func statusFor(err error) (int, string, string) {
	for _, e := range errorTable {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.err.Error()
		if e.detail {
			msg = err.Error()
		}
		return e.status, e.code, msg
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, code, msg)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type secondFactorRequest struct {
	UserID int64  `json:"user_id"`
	Code   string `json:"code"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// submitRequest carries a tagged action, e.g.
// {"kind":"block","payload":{"target_user_id":7}}.
type submitRequest struct {
	Kind    admin.ActionKind `json:"kind"`
	Payload json.RawMessage  `json:"payload"`
}

type resolveRequest struct {
	Decision admin.Decision `json:"decision"`
}

type requestView struct {
	ID          int64            `json:"id"`
	Kind        admin.ActionKind `json:"kind"`
	Action      admin.Action     `json:"action"`
	RequestedBy int64            `json:"requested_by"`
	Status      admin.Status     `json:"status"`
	ReviewedBy  *int64           `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

type resolveView struct {
	Request   requestView `json:"request"`
	Delivered bool        `json:"delivered"`
}

func toRequestView(req admin.PendingRequest) requestView {
	v := requestView{
		ID:          req.ID,
		Action:      req.Action,
		RequestedBy: req.RequestedBy,
		Status:      req.Status,
		ReviewedBy:  req.ReviewedBy,
		ReviewedAt:  req.ReviewedAt,
		CreatedAt:   req.CreatedAt,
	}
	if req.Action != nil {
		v.Kind = req.Action.Kind()
	}
	return v
}

func (s *Server) badBody(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, "invalid_body", "malformed JSON body: "+err.Error())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	res, err := s.engine.SubmitCredentials(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var body secondFactorRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	res, err := s.engine.SubmitSecondFactor(r.Context(), body.UserID, body.Code)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleForgotPassword answers 202 for known and unknown emails alike.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	res, err := s.engine.RequestPasswordReset(r.Context(), body.Email)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if res.Degraded {
		s.logger.Warn("password reset notification not delivered")
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	if err := s.engine.ResetPassword(r.Context(), body.Token, body.Password); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	var body changePasswordRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	if err := s.engine.ChangePassword(r.Context(), id, body.CurrentPassword, body.NewPassword); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "token_invalid", adminauth.ErrTokenInvalid.Error())
		return
	}
	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutOthers(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	n, err := s.engine.LogoutOthers(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	summary, err := s.engine.Profile(r.Context(), id.UserID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	var body profileRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	summary, err := s.engine.UpdateProfile(r.Context(), id.UserID, body.Name, body.Phone)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	var body submitRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	action, err := admin.DecodeAction(body.Kind, body.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req, err := s.engine.SubmitRequest(r.Context(), id.UserID, action)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestView(req))
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	status := admin.Status(r.URL.Query().Get("status"))
	reqs, err := s.engine.ListRequests(r.Context(), id.UserID, status)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestView(req))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	requestID, ok := s.requestID(w, r)
	if !ok {
		return
	}
	req, err := s.engine.GetRequest(r.Context(), id.UserID, requestID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

func (s *Server) handleResolveRequest(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	requestID, ok := s.requestID(w, r)
	if !ok {
		return
	}
	var body resolveRequest
	if err := readJSON(r, &body); err != nil {
		s.badBody(w, err)
		return
	}
	res, err := s.engine.ResolveRequest(r.Context(), requestID, body.Decision, id.UserID)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if !res.Delivered {
		s.logger.Warn("generated credential not delivered",
			zap.Int64("request_id", requestID),
		)
	}
	writeJSON(w, http.StatusOK, resolveView{Request: toRequestView(res.Request), Delivered: res.Delivered})
}

func (s *Server) requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "request id must be a positive integer")
		return 0, false
	}
	return id, true
}

type activityView struct {
	ID        int64             `json:"id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// handleListActivity serves GET /admin/activity?user_id=&event=&from=&to=&limit=.
// from and to are RFC 3339; from is inclusive, to exclusive.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	id, _ := adminauth.IdentityFromContext(r.Context())
	f, msg := parseActivityFilter(r.URL.Query())
	if msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}
	entries, err := s.engine.ListActivity(r.Context(), id.UserID, f)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	out := make([]activityView, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": out})
}

func parseActivityFilter(q url.Values) (admin.ActivityFilter, string) {
	f := admin.ActivityFilter{EventType: q.Get("event")}
	if v := q.Get("user_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return f, "user_id must be a positive integer"
		}
		f.UserID = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, "limit must be a positive integer"
		}
		f.Limit = n
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, p.key + " must be an RFC 3339 timestamp"
		}
		*p.dst = ts
	}
	return f, ""
}

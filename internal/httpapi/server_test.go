package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const testPassword = "Correct-horse-1!"

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type testEnv struct {
	server *Server
	engine *adminauth.Engine
	store  *sqlstore.Store
	outbox *notify.Recorder
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	cfg := adminauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.BaseURL = "https://console.example.com"

	outbox := &notify.Recorder{}
	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithNotifier(outbox).
		WithClock(fixedClock{now: testNow}).
		WithMetricsEnabled(true).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srvCfg := DefaultConfig()
	srvCfg.AuthRequestsPerMinute = 0
	for _, fn := range mutate {
		fn(&srvCfg)
	}

	return &testEnv{
		server: New(srvCfg, engine, store, zap.NewNop()),
		engine: engine,
		store:  store,
		outbox: outbox,
	}
}

func (e *testEnv) seedUser(t *testing.T, email, role string) admin.User {
	t.Helper()
	ctx := context.Background()

	hash, err := e.engine.HashPassword(testPassword)
	require.NoError(t, err)
	u, err := e.store.Users().Create(ctx, admin.NewUser{Email: email, Name: email, PasswordHash: hash, Role: role})
	require.NoError(t, err)
	require.NoError(t, e.store.Users().AppendPasswordHistory(ctx, u.ID, hash, testNow))
	return u
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// login runs both stages over HTTP and returns the session token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	creds := decode[adminauth.CredentialsResult](t, rec)
	require.True(t, creds.SecondFactorRequired)
	require.NotNil(t, creds.Enrollment)

	code, err := totp.GenerateCodeCustom(creds.Enrollment.Secret, testNow, totp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)

	rec = e.do(t, http.MethodPost, "/auth/verify-2fa", "", secondFactorRequest{UserID: creds.UserID, Code: code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[adminauth.LoginResult](t, rec)
	require.NotEmpty(t, res.Token)
	return res.Token
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsBackendFailure(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	rec := env.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLoginAndProfile(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ops@example.com", permission.RoleViewer)
	token := env.login(t, "ops@example.com")

	rec := env.do(t, http.MethodGet, "/admin/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[admin.Summary](t, rec)
	require.Equal(t, "ops@example.com", profile.Email)

	rec = env.do(t, http.MethodPatch, "/admin/profile", token, profileRequest{Name: "Ops Lead", Phone: "+15550100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile = decode[admin.Summary](t, rec)
	require.Equal(t, "Ops Lead", profile.Name)
	require.Equal(t, "+15550100", profile.Phone)

	rec = env.do(t, http.MethodGet, "/admin/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ops@example.com", permission.RoleViewer)

	wrong := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "ops@example.com", Password: "Wrong-pass-1!"})
	unknown := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "ghost@example.com", Password: testPassword})

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":`))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	require.Equal(t, "invalid_body", body.Error.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ops@example.com", permission.RoleViewer)
	token := env.login(t, "ops@example.com")

	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/auth/logout", token, nil).Code)
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/auth/logout", token, nil).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/admin/profile", token, nil).Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/auth/logout", "", nil).Code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ops@example.com", permission.RoleViewer)

	known := env.do(t, http.MethodPost, "/auth/forgot-password", "", forgotPasswordRequest{Email: "ops@example.com"})
	unknown := env.do(t, http.MethodPost, "/auth/forgot-password", "", forgotPasswordRequest{Email: "ghost@example.com"})
	require.Equal(t, http.StatusAccepted, known.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())

	msg, ok := env.outbox.Last("ops@example.com", notify.KindPasswordReset)
	require.True(t, ok)
	link, err := url.Parse(msg.Data[notify.DataResetLink])
	require.NoError(t, err)
	token := link.Query().Get("token")

	rec := env.do(t, http.MethodPost, "/auth/reset-password", "", resetPasswordRequest{Token: token, Password: "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "password_policy", decode[errorResponse](t, rec).Error.Code)

	rec = env.do(t, http.MethodPost, "/auth/reset-password", "", resetPasswordRequest{Token: token, Password: "Brand-new-pass-2?"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/auth/reset-password", "", resetPasswordRequest{Token: token, Password: "Another-pass-3?"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "reset_token_invalid", decode[errorResponse](t, rec).Error.Code)
}

func TestForgotPasswordHidesUndeliveredNotice(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ops@example.com", permission.RoleViewer)

	unknown := env.do(t, http.MethodPost, "/auth/forgot-password", "", forgotPasswordRequest{Email: "ghost@example.com"})
	env.outbox.Fail(errors.New("smtp down"))
	degraded := env.do(t, http.MethodPost, "/auth/forgot-password", "", forgotPasswordRequest{Email: "ops@example.com"})

	require.Equal(t, http.StatusAccepted, degraded.Code)
	require.Equal(t, unknown.Code, degraded.Code)
	require.Equal(t, unknown.Body.String(), degraded.Body.String())
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ops@example.com", permission.RoleViewer)
	token := env.login(t, "ops@example.com")

	rec := env.do(t, http.MethodPost, "/auth/change-password", token, changePasswordRequest{
		CurrentPassword: "Wrong-pass-1!", NewPassword: "Brand-new-pass-2?",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/change-password", token, changePasswordRequest{
		CurrentPassword: testPassword, NewPassword: "Brand-new-pass-2?",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/admin/profile", token, nil).Code)
}

func TestApprovalPipelineOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "maker@example.com", permission.RoleMaker)
	env.seedUser(t, "checker@example.com", permission.RoleChecker)
	target := env.seedUser(t, "target@example.com", permission.RoleViewer)

	makerToken := env.login(t, "maker@example.com")
	checkerToken := env.login(t, "checker@example.com")
	targetToken := env.login(t, "target@example.com")

	rec := env.do(t, http.MethodPost, "/admin/requests", makerToken, submitRequest{
		Kind:    admin.ActionBlock,
		Payload: json.RawMessage(fmt.Sprintf(`{"target_user_id":%d}`, target.ID)),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	require.Equal(t, "block", created["kind"])
	require.Equal(t, "pending", created["status"])
	id := int64(created["id"].(float64))

	rec = env.do(t, http.MethodGet, "/admin/requests", checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Requests []map[string]any `json:"requests"`
	}](t, rec)
	require.Len(t, list.Requests, 1)

	path := fmt.Sprintf("/admin/requests/%d/resolve", id)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path, targetToken, resolveRequest{Decision: admin.DecisionApprove}).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, path, makerToken, resolveRequest{Decision: admin.DecisionApprove}).Code)

	rec = env.do(t, http.MethodPost, path, checkerToken, resolveRequest{Decision: admin.DecisionApprove})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decode[map[string]any](t, rec)
	require.Equal(t, true, resolved["delivered"])

	rec = env.do(t, http.MethodPost, path, checkerToken, resolveRequest{Decision: admin.DecisionReject})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Blocking revoked the target's session.
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/admin/profile", targetToken, nil).Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/admin/requests/%d", id), checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "approved", decode[map[string]any](t, rec)["status"])
}

func TestSubmitRequestRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "maker@example.com", permission.RoleMaker)
	token := env.login(t, "maker@example.com")

	rec := env.do(t, http.MethodPost, "/admin/requests", token, submitRequest{Kind: "delete", Payload: json.RawMessage(`{}`)})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/requests", token, submitRequest{
		Kind:    admin.ActionBlock,
		Payload: json.RawMessage(`{"target_user_id":9999}`),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decode[errorResponse](t, rec).Error.Code)

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/admin/requests/abc", token, nil).Code)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/admin/requests/42", token, nil).Code)
}

func TestAuthRoutesAreRateLimitedPerIP(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.AuthRequestsPerMinute = 2 })

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "ghost@example.com", Password: testPassword})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "ghost@example.com", Password: testPassword})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Authenticated routes are not behind the per-IP limiter.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "ghost@example.com", Password: testPassword})

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "adminauth_login_failure_total 1")
	require.Contains(t, rec.Body.String(), "adminauth_state_up 1")
	require.Contains(t, rec.Body.String(), `adminauth_requests{status="pending"} 0`)
	require.Contains(t, rec.Body.String(), "adminauth_active_sessions 0")

	off := newTestEnv(t, func(c *Config) { c.EnableMetrics = false })
	require.Equal(t, http.StatusNotFound, off.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

func TestActivityLogOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	maker := env.seedUser(t, "maker@example.com", permission.RoleMaker)
	env.seedUser(t, "checker@example.com", permission.RoleChecker)
	makerToken := env.login(t, "maker@example.com")
	checkerToken := env.login(t, "checker@example.com")

	sink := sqlstore.NewActivitySink(env.store)
	ctx := context.Background()
	seed := []adminauth.AuditEvent{
		{Timestamp: testNow.Add(-3 * time.Hour), EventType: "login_credentials", UserID: fmt.Sprint(maker.ID), Success: false, Error: "invalid_credentials"},
		{Timestamp: testNow.Add(-2 * time.Hour), EventType: "login_second_factor", UserID: fmt.Sprint(maker.ID), Success: true},
		{Timestamp: testNow.Add(-time.Hour), EventType: "logout", UserID: "999", Success: true, Metadata: map[string]string{"reason": "user"}},
	}
	for _, ev := range seed {
		sink.Emit(ctx, ev)
	}

	type activityList struct {
		Activity []activityView `json:"activity"`
	}

	rec := env.do(t, http.MethodGet, "/admin/activity", checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	all := decode[activityList](t, rec)
	require.Len(t, all.Activity, 3)
	require.Equal(t, "logout", all.Activity[0].EventType)
	require.Equal(t, "user", all.Activity[0].Details["reason"])

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/admin/activity?user_id=%d", maker.ID), checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	byUser := decode[activityList](t, rec)
	require.Len(t, byUser.Activity, 2)
	require.Equal(t, "login_second_factor", byUser.Activity[0].EventType)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/admin/activity?user_id=%d&event=login_credentials", maker.ID), checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	byEvent := decode[activityList](t, rec)
	require.Len(t, byEvent.Activity, 1)
	require.False(t, byEvent.Activity[0].Success)
	require.Equal(t, "invalid_credentials", byEvent.Activity[0].Error)

	q := url.Values{}
	q.Set("from", testNow.Add(-150*time.Minute).Format(time.RFC3339))
	q.Set("to", testNow.Add(-30*time.Minute).Format(time.RFC3339))
	rec = env.do(t, http.MethodGet, "/admin/activity?"+q.Encode(), checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	window := decode[activityList](t, rec)
	require.Len(t, window.Activity, 2)
	require.Equal(t, "logout", window.Activity[0].EventType)
	require.Equal(t, "login_second_factor", window.Activity[1].EventType)

	rec = env.do(t, http.MethodGet, "/admin/activity?limit=1", checkerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, decode[activityList](t, rec).Activity, 1)

	for _, bad := range []string{
		"user_id=abc",
		"limit=0",
		"from=yesterday",
		"from=" + url.QueryEscape(testNow.Format(time.RFC3339)) + "&to=" + url.QueryEscape(testNow.Add(-time.Hour).Format(time.RFC3339)),
	} {
		rec = env.do(t, http.MethodGet, "/admin/activity?"+bad, checkerToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, bad)
		require.Contains(t, rec.Body.String(), "invalid_request", bad)
	}

	rec = env.do(t, http.MethodGet, "/admin/activity", makerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/admin/activity", "", nil).Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{adminauth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{adminauth.ErrSessionExpired, http.StatusUnauthorized, "session_expired"},
		{adminauth.ErrLoginRateLimited, http.StatusTooManyRequests, "login_rate_limited"},
		{adminauth.ErrRequestAlreadyResolved, http.StatusConflict, "request_already_resolved"},
		{adminauth.ErrSelfApproval, http.StatusForbidden, "self_approval"},
		{fmt.Errorf("%w: %w", adminauth.ErrInvalidRequest, adminauth.ErrUserNotFound), http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("%w: dial tcp: refused", adminauth.ErrStoreUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code, _ := statusFor(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, code, tc.err.Error())
	}

	_, _, msg := statusFor(fmt.Errorf("%w: dial tcp: refused", adminauth.ErrStoreUnavailable))
	require.Equal(t, adminauth.ErrStoreUnavailable.Error(), msg)
}

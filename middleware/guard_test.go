package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

const testPassword = "Correct-horse-1!"

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newEngine(t *testing.T) (*adminauth.Engine, *sqlstore.Store) {
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

	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(store).
		WithNotifier(&notify.Recorder{}).
		WithClock(fixedClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine, store
}

func loginAs(t *testing.T, engine *adminauth.Engine, store *sqlstore.Store, email, role string) string {
	t.Helper()
	ctx := context.Background()

	hash, err := engine.HashPassword(testPassword)
	require.NoError(t, err)
	_, err = store.Users().Create(ctx, admin.NewUser{Email: email, Name: email, PasswordHash: hash, Role: role})
	require.NoError(t, err)

	creds, err := engine.SubmitCredentials(ctx, email, testPassword)
	require.NoError(t, err)
	require.NotNil(t, creds.Enrollment)
	code, err := totp.GenerateCodeCustom(creds.Enrollment.Secret, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), totp.ValidateOpts{
		Period: 30, Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	res, err := engine.SubmitSecondFactor(ctx, creds.UserID, code)
	require.NoError(t, err)
	return res.Token
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := adminauth.IdentityFromContext(r.Context())
		require.True(t, ok)
		require.NotZero(t, id.UserID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	require.True(t, ok)
	require.Equal(t, "abc", tok)

	for _, v := range []string{"", "Bearer ", "Basic abc", "bearer abc"} {
		_, ok := BearerToken(v)
		require.False(t, ok, v)
	}
}

func TestRequireSession(t *testing.T) {
	engine, store := newEngine(t)
	token := loginAs(t, engine, store, "maker@example.com", permission.RoleMaker)
	h := RequireSession(engine)(okHandler(t))

	require.Equal(t, http.StatusNoContent, serve(h, token))
	require.Equal(t, http.StatusUnauthorized, serve(h, ""))
	require.Equal(t, http.StatusUnauthorized, serve(h, "garbage"))

	require.NoError(t, engine.Logout(context.Background(), token))
	require.Equal(t, http.StatusUnauthorized, serve(h, token))
}

func TestRequireSessionNilEngine(t *testing.T) {
	h := RequireSession(nil)(http.NotFoundHandler())
	require.Equal(t, http.StatusUnauthorized, serve(h, "x"))
}

func TestRequirePermission(t *testing.T) {
	engine, store := newEngine(t)
	checker := loginAs(t, engine, store, "checker@example.com", permission.RoleChecker)
	viewer := loginAs(t, engine, store, "viewer@example.com", permission.RoleViewer)
	h := RequirePermission(engine, permission.ApproveReject)(okHandler(t))

	require.Equal(t, http.StatusNoContent, serve(h, checker))
	require.Equal(t, http.StatusForbidden, serve(h, viewer))
	require.Equal(t, http.StatusUnauthorized, serve(h, ""))
}

func TestClientContextAttachesAddress(t *testing.T) {
	engine, store := newEngine(t)
	hash, err := engine.HashPassword(testPassword)
	require.NoError(t, err)
	_, err = store.Users().Create(context.Background(), admin.NewUser{
		Email: "ops@example.com", Name: "Ops", PasswordHash: hash, Role: permission.RoleViewer,
	})
	require.NoError(t, err)

	var got string
	h := ClientContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := engine.SubmitCredentials(r.Context(), "ops@example.com", testPassword)
		require.NoError(t, err)
		got = r.RemoteAddr
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:5120"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "203.0.113.7:5120", got)
	require.Equal(t, "203.0.113.7", clientIP(req))
}

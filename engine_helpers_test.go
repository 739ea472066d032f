package adminauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

const (
	testMemoryDSN = ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite"
	testPassword  = "Correct-horse-1!"
)

var testBaseTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	store  *sqlstore.Store
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	clock  *fakeClock
	outbox *notify.Recorder
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.PasswordReset.BaseURL = "https://console.example.com"
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func newTestStore(t testing.TB) *sqlstore.Store {
	t.Helper()

	ctx := context.Background()
	s, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: testMemoryDSN}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestEnv(t testing.TB, mutate ...func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	return newTestEnvWithSink(t, cfg, nil)
}

func newTestEnvWithSink(t testing.TB, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		store:  newTestStore(t),
		mr:     mr,
		rdb:    rdb,
		clock:  newFakeClock(testBaseTime),
		outbox: &notify.Recorder{},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(env.store).
		WithNotifier(env.outbox).
		WithAuditSink(sink).
		WithClock(env.clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) createUser(t testing.TB, email, role string) admin.User {
	t.Helper()

	hash, err := env.engine.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := env.store.Users().Create(context.Background(), admin.NewUser{
		Email:        email,
		Name:         "User " + email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    env.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	if err := env.store.Users().AppendPasswordHistory(context.Background(), u.ID, hash, env.clock.Now()); err != nil {
		t.Fatalf("append history: %v", err)
	}
	return u
}

func (env *testEnv) secret(t testing.TB, userID int64) string {
	t.Helper()

	u, err := env.store.Users().Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get user %d: %v", userID, err)
	}
	if u.TOTPSecret == "" {
		t.Fatalf("user %d has no totp secret", userID)
	}
	return u.TOTPSecret
}

func (env *testEnv) codeAt(t testing.TB, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

// login runs both stages and returns the issued session.
func (env *testEnv) login(t testing.TB, email string) *LoginResult {
	t.Helper()

	ctx := context.Background()
	creds, err := env.engine.SubmitCredentials(ctx, email, testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials(%s): %v", email, err)
	}
	code := env.codeAt(t, env.secret(t, creds.UserID), env.clock.Now())
	res, err := env.engine.SubmitSecondFactor(ctx, creds.UserID, code)
	if err != nil {
		t.Fatalf("SubmitSecondFactor(%s): %v", email, err)
	}
	return res
}

// staff creates one user per built-in role.
func (env *testEnv) staff(t testing.TB) (maker, checker, viewer admin.User) {
	t.Helper()

	maker = env.createUser(t, "maker@example.com", permission.RoleMaker)
	checker = env.createUser(t, "checker@example.com", permission.RoleChecker)
	viewer = env.createUser(t, "viewer@example.com", permission.RoleViewer)
	return maker, checker, viewer
}

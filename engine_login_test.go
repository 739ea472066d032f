package adminauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/permission"
)

func TestSubmitCredentialsEnrollsOnFirstLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	res, err := env.engine.SubmitCredentials(ctx, "  Alice@Example.com ", testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	if res.UserID != u.ID || !res.SecondFactorRequired {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Enrollment == nil {
		t.Fatal("expected enrollment on first login")
	}
	if !strings.HasPrefix(res.Enrollment.URI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri %q", res.Enrollment.URI)
	}
	if !strings.HasPrefix(res.Enrollment.QRCode, "data:image/png;base64,") {
		t.Fatal("expected png data url")
	}
	if got := env.secret(t, u.ID); got != res.Enrollment.Secret {
		t.Fatalf("stored secret %q does not match enrollment %q", got, res.Enrollment.Secret)
	}
	if _, ok := env.outbox.Last(u.Email, notify.KindTwoFactorSetup); !ok {
		t.Fatal("expected two-factor setup notification")
	}
	sessions, err := env.store.Sessions().ListActive(ctx, u.ID, env.clock.Now())
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("credentials stage must not open a session, got %d", len(sessions))
	}

	again, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword)
	if err != nil {
		t.Fatalf("second SubmitCredentials failed: %v", err)
	}
	if again.Enrollment != nil {
		t.Fatal("expected no enrollment once a secret is stored")
	}
	if got := env.secret(t, u.ID); got != res.Enrollment.Secret {
		t.Fatal("secret must not change after enrollment")
	}
}

func TestSubmitCredentialsConcurrentEnrollmentKeepsOneSecret(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	const workers = 4
	secrets := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.engine.SubmitCredentials(context.Background(), u.Email, testPassword)
			if err != nil || res.Enrollment == nil {
				return
			}
			secrets[i] = res.Enrollment.Secret
		}(i)
	}
	wg.Wait()

	stored := env.secret(t, u.ID)
	for i, s := range secrets {
		if s != "" && s != stored {
			t.Fatalf("worker %d got secret %q, stored %q", i, s, stored)
		}
	}
}

func TestSubmitCredentialsUniformFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	blocked := env.createUser(t, "blocked@example.com", permission.RoleMaker)
	if err := env.store.Users().SetBlocked(ctx, blocked.ID, true, env.clock.Now()); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}
	env.createUser(t, "alice@example.com", permission.RoleMaker)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", testPassword},
		{"wrong password", "alice@example.com", "Wrong-password-1!"},
		{"blocked account", "blocked@example.com", testPassword},
		{"empty password", "alice@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.SubmitCredentials(ctx, tc.email, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestSubmitCredentialsRevealInactive(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Login.RevealInactive = true })
	ctx := context.Background()
	u := env.createUser(t, "blocked@example.com", permission.RoleMaker)
	if err := env.store.Users().SetBlocked(ctx, u.ID, true, env.clock.Now()); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}

	if _, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if _, err := env.engine.SubmitCredentials(ctx, u.Email, "Wrong-password-1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password must stay generic, got %v", err)
	}
}

func TestSubmitCredentialsRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Login.MaxAttempts = 3 })
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	for i := 0; i < 3; i++ {
		if _, err := env.engine.SubmitCredentials(ctx, u.Email, "Wrong-password-1!"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
}

func TestSubmitSecondFactorIssuesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.7"), "console/1.0")
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	creds, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	code := env.codeAt(t, creds.Enrollment.Secret, env.clock.Now())
	res, err := env.engine.SubmitSecondFactor(ctx, u.ID, code)
	if err != nil {
		t.Fatalf("SubmitSecondFactor failed: %v", err)
	}
	if res.Token == "" || res.SessionID == "" {
		t.Fatalf("expected token and session id, got %+v", res)
	}
	if res.User.ID != u.ID || res.User.Email != u.Email {
		t.Fatalf("unexpected user summary %+v", res.User)
	}
	if !res.ExpiresAt.Equal(env.clock.Now().Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %v", res.ExpiresAt)
	}

	rows, err := env.store.Sessions().ListActive(context.Background(), u.ID, env.clock.Now())
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one active session, got %d", len(rows))
	}
	if rows[0].SourceIP != "198.51.100.7" || rows[0].ClientDescriptor != "console/1.0" {
		t.Fatalf("client details not recorded: %+v", rows[0])
	}
	if rows[0].TokenHash == res.Token {
		t.Fatal("ledger must store a hash, not the token")
	}
}

func TestSubmitSecondFactorAcceptsAdjacentStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	creds, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	previous := env.codeAt(t, creds.Enrollment.Secret, env.clock.Now().Add(-30*time.Second))
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, previous); err != nil {
		t.Fatalf("expected code from the previous step to pass, got %v", err)
	}
}

func TestSubmitSecondFactorRejectsOutsideSkew(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	creds, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword)
	if err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	stale := env.codeAt(t, creds.Enrollment.Secret, env.clock.Now().Add(-2*time.Minute))
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, stale); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor, got %v", err)
	}
}

func TestSubmitSecondFactorRejectsReplayedCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	first := env.login(t, u.Email)
	if first.Token == "" {
		t.Fatal("expected token")
	}

	if _, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword); err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	code := env.codeAt(t, env.secret(t, u.ID), env.clock.Now())
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, code); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected replayed code to fail, got %v", err)
	}
}

func TestSubmitSecondFactorRequiresChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	env.login(t, u.Email)
	env.clock.Advance(time.Minute)

	// The challenge closed with the first session.
	code := env.codeAt(t, env.secret(t, u.ID), env.clock.Now())
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, code); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor without a challenge, got %v", err)
	}
}

func TestSubmitSecondFactorAttemptsExhausted(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.TOTP.MaxAttempts = 2 })
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	if _, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword); err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	valid := env.codeAt(t, env.secret(t, u.ID), env.clock.Now())
	wrong := "000000"
	if wrong == valid {
		wrong = "111111"
	}

	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, wrong); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("expected ErrInvalidSecondFactor, got %v", err)
	}
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, wrong); !errors.Is(err, ErrSecondFactorRateLimited) {
		t.Fatalf("expected ErrSecondFactorRateLimited, got %v", err)
	}
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, valid); !errors.Is(err, ErrInvalidSecondFactor) {
		t.Fatalf("challenge must be closed after exhaustion, got %v", err)
	}
}

func TestSubmitSecondFactorBlockedMidLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.createUser(t, "alice@example.com", permission.RoleMaker)

	if _, err := env.engine.SubmitCredentials(ctx, u.Email, testPassword); err != nil {
		t.Fatalf("SubmitCredentials failed: %v", err)
	}
	if err := env.store.Users().SetBlocked(ctx, u.ID, true, env.clock.Now()); err != nil {
		t.Fatalf("SetBlocked failed: %v", err)
	}
	code := env.codeAt(t, env.secret(t, u.ID), env.clock.Now())
	if _, err := env.engine.SubmitSecondFactor(ctx, u.ID, code); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.SubmitCredentials(context.Background(), "a@example.com", "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := (&Engine{}).Validate(context.Background(), "t"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/internal/twofactor"
	"github.com/MrEthical07/adminauth/notify"
)

// LoginDeps captures the credential and second-factor stages.
type LoginDeps struct {
	Runtime

	RevealInactive  bool
	SessionLifetime time.Duration

	VerifyPassword func(password, encodedHash string) (bool, error)
	DummyVerify    func(password string)
	NeedsUpgrade   func(encodedHash string) (bool, error)
	HashPassword   func(password string) (string, error)

	// CheckLimiter and RecordFailure return root errors already mapped.
	CheckLimiter  func(ctx context.Context, email, ip string) error
	RecordFailure func(ctx context.Context, email, ip string) error
	ResetLimiter  func(ctx context.Context, email string) error

	Enroll        func(account string) (twofactor.Enrollment, error)
	EnrollmentFor func(account, secret string) (twofactor.Enrollment, error)
	VerifyCode    func(secret, code string, now time.Time) (int64, bool, error)
	MarkStepUsed  func(ctx context.Context, userID, step int64) (bool, error)

	OpenChallenge          func(ctx context.Context, userID int64, now time.Time) error
	ChallengeOpen          func(ctx context.Context, userID int64, now time.Time) (bool, error)
	RecordChallengeFailure func(ctx context.Context, userID int64, now time.Time) (bool, error)
	CloseChallenge         func(ctx context.Context, userID int64) error

	SignToken    func(userID int64, role, sessionID string, issuedAt time.Time) (string, error)
	NewSessionID func() string
}

// CredentialsResult is the outcome of a successful first stage.
type CredentialsResult struct {
	UserID int64
	// Enrollment is set only when this call created (or found a concurrently
	// created) secret for a user who had none.
	Enrollment *twofactor.Enrollment
}

// LoginResult is the outcome of a successful second stage.
type LoginResult struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	User      admin.Summary
}

func (d LoginDeps) ready() bool {
	return d.Runtime.Ready() &&
		d.VerifyPassword != nil &&
		d.DummyVerify != nil &&
		d.Enroll != nil &&
		d.EnrollmentFor != nil &&
		d.VerifyCode != nil &&
		d.MarkStepUsed != nil &&
		d.OpenChallenge != nil &&
		d.ChallengeOpen != nil &&
		d.RecordChallengeFailure != nil &&
		d.CloseChallenge != nil &&
		d.SignToken != nil &&
		d.NewSessionID != nil
}

func normalizeLoginDeps(d *LoginDeps) {
	d.Runtime.normalize()
	if d.CheckLimiter == nil {
		d.CheckLimiter = func(context.Context, string, string) error { return nil }
	}
	if d.RecordFailure == nil {
		d.RecordFailure = func(context.Context, string, string) error { return nil }
	}
	if d.ResetLimiter == nil {
		d.ResetLimiter = func(context.Context, string) error { return nil }
	}
	if d.SessionLifetime <= 0 {
		d.SessionLifetime = 24 * time.Hour
	}
}

// RunSubmitCredentials verifies email and password. Success always moves the
// user to the second-factor stage; it never issues a token.
func RunSubmitCredentials(ctx context.Context, email, password string, deps LoginDeps) (CredentialsResult, error) {
	normalizeLoginDeps(&deps)
	if !deps.ready() {
		return CredentialsResult{}, deps.Errors.EngineNotReady
	}

	email = admin.NormalizeEmail(email)
	ip := deps.ClientIP(ctx)
	if email == "" || password == "" {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginCredentials, false, "", "", deps.Errors.InvalidCredentials, reason("empty_input"))
		return CredentialsResult{}, deps.Errors.InvalidCredentials
	}

	if err := deps.CheckLimiter(ctx, email, ip); err != nil {
		if errors.Is(err, deps.Errors.LoginRateLimited) {
			deps.MetricInc(deps.Metrics.LoginRateLimited)
		}
		deps.EmitAudit(ctx, deps.Events.LoginCredentials, false, "", "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return CredentialsResult{}, err
	}

	user, err := deps.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, admin.ErrNotFound) {
			return CredentialsResult{}, deps.storeError(err)
		}
		deps.DummyVerify(password)
		return CredentialsResult{}, deps.credentialFailure(ctx, email, ip, "", "unknown_email")
	}

	uid := formatID(user.ID)
	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		deps.Logger.Warn("stored password hash unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if err != nil || !ok {
		return CredentialsResult{}, deps.credentialFailure(ctx, email, ip, uid, "password_mismatch")
	}

	if !user.CanLogin() {
		status := "inactive"
		if user.Blocked {
			status = "blocked"
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginCredentials, false, uid, "", deps.Errors.AccountInactive, reason(status))
		if deps.RevealInactive {
			return CredentialsResult{}, deps.Errors.AccountInactive
		}
		return CredentialsResult{}, deps.Errors.InvalidCredentials
	}

	if err := deps.ResetLimiter(ctx, email); err != nil {
		deps.Logger.Warn("login limiter reset failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	deps.upgradeHash(ctx, user, password)

	result := CredentialsResult{UserID: user.ID}
	if !user.TOTPEnrolled() {
		enrollment, err := deps.enroll(ctx, user)
		if err != nil {
			return CredentialsResult{}, err
		}
		result.Enrollment = &enrollment
	}

	if err := deps.OpenChallenge(ctx, user.ID, deps.Now()); err != nil {
		return CredentialsResult{}, deps.storeError(err)
	}

	deps.EmitAudit(ctx, deps.Events.LoginCredentials, true, uid, "", nil, func() map[string]string {
		return map[string]string{"enrolling": fmt.Sprint(result.Enrollment != nil)}
	})
	return result, nil
}

func (d LoginDeps) credentialFailure(ctx context.Context, email, ip, uid, why string) error {
	if err := d.RecordFailure(ctx, email, ip); err != nil {
		d.Logger.Warn("login failure not recorded", zap.Error(err))
	}
	d.MetricInc(d.Metrics.LoginFailure)
	d.EmitAudit(ctx, d.Events.LoginCredentials, false, uid, "", d.Errors.InvalidCredentials, func() map[string]string {
		return map[string]string{"reason": why, "email": email}
	})
	return d.Errors.InvalidCredentials
}

// upgradeHash rewrites a hash produced with outdated parameters or a legacy
// scheme. Failure leaves the old hash in place.
func (d LoginDeps) upgradeHash(ctx context.Context, user admin.User, password string) {
	if d.NeedsUpgrade == nil || d.HashPassword == nil {
		return
	}
	upgrade, err := d.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	newHash, err := d.HashPassword(password)
	if err != nil {
		d.Logger.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := d.Store.Users().SetPassword(ctx, user.ID, newHash, user.FirstLogin, d.Now()); err != nil {
		d.Logger.Warn("password rehash not stored", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// enroll creates the user's secret with a conditional write. When a concurrent
// login stored one first, the stored secret wins and is returned instead.
func (d LoginDeps) enroll(ctx context.Context, user admin.User) (twofactor.Enrollment, error) {
	enrollment, err := d.Enroll(user.Email)
	if err != nil {
		return twofactor.Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	written, err := d.Store.Users().EnrollTOTP(ctx, user.ID, enrollment.Secret, d.Now())
	if err != nil {
		return twofactor.Enrollment{}, d.storeError(err)
	}
	if !written {
		stored, err := d.Store.Users().Get(ctx, user.ID)
		if err != nil {
			return twofactor.Enrollment{}, d.storeError(err)
		}
		return d.EnrollmentFor(user.Email, stored.TOTPSecret)
	}

	d.MetricInc(d.Metrics.TwoFactorEnrolled)
	d.EmitAudit(ctx, d.Events.TwoFactorEnrolled, true, formatID(user.ID), "", nil, nil)
	d.send(ctx, notify.Message{
		Recipient: user.Email,
		Kind:      notify.KindTwoFactorSetup,
		Data:      map[string]string{notify.DataName: user.Name},
	})
	return enrollment, nil
}

// RunSubmitSecondFactor completes a login opened by RunSubmitCredentials. Only
// this stage creates a session.
func RunSubmitSecondFactor(ctx context.Context, userID int64, code string, deps LoginDeps) (LoginResult, error) {
	normalizeLoginDeps(&deps)
	if !deps.ready() {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	now := deps.Now()
	uid := formatID(userID)
	if userID <= 0 || code == "" {
		return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.InvalidSecondFactor, "empty_input")
	}

	open, err := deps.ChallengeOpen(ctx, userID, now)
	if err != nil {
		return LoginResult{}, deps.storeError(err)
	}
	if !open {
		return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.InvalidSecondFactor, "no_challenge")
	}

	user, err := deps.Store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.InvalidSecondFactor, "unknown_user")
		}
		return LoginResult{}, deps.storeError(err)
	}
	if !user.CanLogin() || !user.TOTPEnrolled() {
		deps.closeChallenge(ctx, userID)
		return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.InvalidCredentials, "account_state_changed")
	}

	step, ok, err := deps.VerifyCode(user.TOTPSecret, code, now)
	if err != nil {
		deps.Logger.Warn("totp verification error", zap.Int64("user_id", userID), zap.Error(err))
	}
	if err != nil || !ok {
		exceeded, ferr := deps.RecordChallengeFailure(ctx, userID, now)
		if ferr != nil {
			return LoginResult{}, deps.storeError(ferr)
		}
		if exceeded {
			deps.MetricInc(deps.Metrics.SecondFactorRateLimited)
			return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.SecondFactorRateLimited, "attempts_exhausted")
		}
		return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.InvalidSecondFactor, "code_mismatch")
	}

	fresh, err := deps.MarkStepUsed(ctx, userID, step)
	if err != nil {
		return LoginResult{}, deps.storeError(err)
	}
	if !fresh {
		return LoginResult{}, deps.secondFactorFailure(ctx, uid, deps.Errors.InvalidSecondFactor, "code_replayed")
	}

	sessionID := deps.NewSessionID()
	token, err := deps.SignToken(user.ID, user.Role, sessionID, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session token: %w", err)
	}
	row := admin.LoginSession{
		ID:               sessionID,
		UserID:           user.ID,
		TokenHash:        HashToken(token),
		IssuedAt:         now,
		ExpiresAt:        now.Add(deps.SessionLifetime),
		SourceIP:         deps.ClientIP(ctx),
		ClientDescriptor: deps.UserAgent(ctx),
		Active:           true,
	}
	if err := deps.Store.Sessions().Create(ctx, row); err != nil {
		return LoginResult{}, deps.storeError(err)
	}
	deps.closeChallenge(ctx, userID)

	deps.MetricInc(deps.Metrics.SecondFactorSuccess)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSecondFactor, true, uid, sessionID, nil, nil)

	return LoginResult{
		Token:     token,
		SessionID: sessionID,
		ExpiresAt: row.ExpiresAt,
		User:      user.Summary(),
	}, nil
}

func (d LoginDeps) secondFactorFailure(ctx context.Context, uid string, err error, why string) error {
	d.MetricInc(d.Metrics.SecondFactorFailure)
	d.EmitAudit(ctx, d.Events.LoginSecondFactor, false, uid, "", err, reason(why))
	return err
}

func (d LoginDeps) closeChallenge(ctx context.Context, userID int64) {
	if err := d.CloseChallenge(ctx, userID); err != nil {
		d.Logger.Warn("login challenge not closed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

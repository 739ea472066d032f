package adminauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/adminauth/internal"
	"github.com/MrEthical07/adminauth/internal/flows"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/internal/stores"
	"github.com/MrEthical07/adminauth/internal/twofactor"
	"github.com/MrEthical07/adminauth/notify"
	"github.com/MrEthical07/adminauth/password"
)

func (e *Engine) flowDeps() flows.Deps {
	rt := e.runtimeDeps()
	return flows.Deps{
		Runtime:  rt,
		Login:    e.loginFlowDeps(rt),
		Session:  e.sessionFlowDeps(rt),
		Password: e.passwordFlowDeps(rt),
		Approval: e.approvalFlowDeps(rt),
	}
}

func (e *Engine) runtimeDeps() flows.Runtime {
	return flows.Runtime{
		Store:     e.store,
		Now:       e.now,
		Logger:    e.logger,
		ClientIP:  clientIPFromContext,
		UserAgent: userAgentFromContext,
		Notify: func(ctx context.Context, msg notify.Message) error {
			return e.notifier.Send(ctx, msg)
		},
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Errors: flows.Errors{
			EngineNotReady:          ErrEngineNotReady,
			InvalidCredentials:      ErrInvalidCredentials,
			AccountInactive:         ErrAccountInactive,
			InvalidSecondFactor:     ErrInvalidSecondFactor,
			LoginRateLimited:        ErrLoginRateLimited,
			SecondFactorRateLimited: ErrSecondFactorRateLimited,
			TokenInvalid:            ErrTokenInvalid,
			SessionExpired:          ErrSessionExpired,
			SessionRevoked:          ErrSessionRevoked,
			TokenExpiredOrUnknown:   ErrTokenExpiredOrUnknown,
			ResetRateLimited:        ErrResetRateLimited,
			PasswordPolicy:          ErrPasswordPolicy,
			PasswordReuse:           ErrPasswordReuse,
			InvalidRequest:          ErrInvalidRequest,
			UserNotFound:            ErrUserNotFound,
			RequestNotFound:         ErrRequestNotFound,
			RequestAlreadyResolved:  ErrRequestAlreadyResolved,
			PermissionDenied:        ErrPermissionDenied,
			SelfApproval:            ErrSelfApproval,
			DuplicateEmail:          ErrDuplicateEmail,
			StoreUnavailable:        ErrStoreUnavailable,
		},
		Events: flows.Events{
			LoginCredentials:     auditEventLoginCredentials,
			LoginSecondFactor:    auditEventLoginSecondFactor,
			TwoFactorEnrolled:    auditEventTwoFactorEnrolled,
			Logout:               auditEventLogoutSession,
			LogoutAll:            auditEventLogoutAll,
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
			PasswordChange:       auditEventPasswordChange,
			ProfileUpdate:        auditEventProfileUpdate,
			RequestSubmit:        auditEventRequestSubmit,
			RequestResolve:       auditEventRequestResolve,
		},
		Metrics: flows.Metrics{
			LoginSuccess:            int(MetricLoginSuccess),
			LoginFailure:            int(MetricLoginFailure),
			LoginRateLimited:        int(MetricLoginRateLimited),
			SecondFactorSuccess:     int(MetricSecondFactorSuccess),
			SecondFactorFailure:     int(MetricSecondFactorFailure),
			SecondFactorRateLimited: int(MetricSecondFactorRateLimited),
			TwoFactorEnrolled:       int(MetricTwoFactorEnrolled),
			ValidateSuccess:         int(MetricValidateSuccess),
			SessionExpired:          int(MetricSessionExpired),
			SessionRevoked:          int(MetricSessionRevoked),
			TokenInvalid:            int(MetricTokenInvalid),
			Logout:                  int(MetricLogout),
			PasswordResetRequest:    int(MetricPasswordResetRequest),
			PasswordResetSuccess:    int(MetricPasswordResetSuccess),
			PasswordResetFailure:    int(MetricPasswordResetFailure),
			PasswordChangeSuccess:   int(MetricPasswordChangeSuccess),
			PasswordChangeFailure:   int(MetricPasswordChangeFailure),
			RequestSubmitted:        int(MetricRequestSubmitted),
			RequestApproved:         int(MetricRequestApproved),
			RequestRejected:         int(MetricRequestRejected),
			RequestConflict:         int(MetricRequestConflict),
			NotifyFailure:           int(MetricNotifyFailure),
		},
	}
}

func (e *Engine) loginFlowDeps(rt flows.Runtime) flows.LoginDeps {
	cfg := e.config
	deps := flows.LoginDeps{
		Runtime:         rt,
		RevealInactive:  cfg.Login.RevealInactive,
		SessionLifetime: cfg.Session.Lifetime,
		VerifyPassword:  e.hasher.Verify,
		DummyVerify: func(pw string) {
			_, _ = e.hasher.Verify(pw, e.dummyHash)
		},
		CheckLimiter: func(ctx context.Context, email, ip string) error {
			return limiterError(e.rateLimiter.CheckLogin(ctx, email, ip), ErrLoginRateLimited)
		},
		RecordFailure: e.rateLimiter.RecordLoginFailure,
		ResetLimiter:  e.rateLimiter.ResetLogin,
		Enroll:        e.totp.Enroll,
		EnrollmentFor: e.totp.EnrollmentFor,
		VerifyCode:    e.totp.Verify,
		MarkStepUsed: func(ctx context.Context, userID, step int64) (bool, error) {
			return e.totpReplay.MarkUsed(ctx, userID, step, e.replayWindow())
		},
		OpenChallenge: func(ctx context.Context, userID int64, now time.Time) error {
			return e.challenges.Open(ctx, userID, now, cfg.TOTP.ChallengeTTL)
		},
		ChallengeOpen: func(ctx context.Context, userID int64, now time.Time) (bool, error) {
			_, err := e.challenges.Get(ctx, userID, now)
			return challengeState(err)
		},
		RecordChallengeFailure: func(ctx context.Context, userID int64, now time.Time) (bool, error) {
			exceeded, err := e.challenges.RecordFailure(ctx, userID, cfg.TOTP.MaxAttempts, now)
			if _, serr := challengeState(err); serr != nil {
				return false, serr
			}
			return exceeded, nil
		},
		CloseChallenge: func(ctx context.Context, userID int64) error {
			_, err := e.challenges.Close(ctx, userID)
			return err
		},
		SignToken:    e.jwtManager.Sign,
		NewSessionID: uuid.NewString,
	}
	if cfg.Password.UpgradeOnLogin {
		deps.NeedsUpgrade = e.hasher.NeedsUpgrade
		deps.HashPassword = e.hasher.Hash
	}
	return deps
}

func (e *Engine) sessionFlowDeps(rt flows.Runtime) flows.SessionDeps {
	return flows.SessionDeps{
		Runtime:           rt,
		InactivityCeiling: e.config.Session.InactivityCeiling,
		VerifyToken:       e.jwtManager.Verify,
	}
}

func (e *Engine) passwordFlowDeps(rt flows.Runtime) flows.PasswordDeps {
	cfg := e.config
	return flows.PasswordDeps{
		Runtime:        rt,
		ResetTTL:       cfg.PasswordReset.TokenTTL,
		BaseURL:        cfg.PasswordReset.BaseURL,
		RevokeSessions: cfg.PasswordReset.RevokeSessions,
		HistorySize:    cfg.Password.HistorySize,
		AllowResetRequest: func(ctx context.Context, email string) error {
			return limiterError(e.rateLimiter.AllowResetRequest(ctx, email), ErrResetRateLimited)
		},
		NewResetToken:    internal.NewResetToken,
		PolicyViolations: cfg.Password.Policy.Violations,
		HashPassword:     e.hasher.Hash,
		VerifyPassword:   e.hasher.Verify,
	}
}

func (e *Engine) approvalFlowDeps(rt flows.Runtime) flows.ApprovalDeps {
	cfg := e.config
	return flows.ApprovalDeps{
		Runtime:                 rt,
		RequireDistinctReviewer: cfg.Approval.RequireDistinctReviewer,
		ListLimit:               cfg.Approval.ListLimit,
		HasPermission:           e.roleManager.Has,
		RoleExists:              e.roleManager.Exists,
		GeneratePassword: func() (string, error) {
			return password.Generate(cfg.Password.GeneratedLength)
		},
		HashPassword: e.hasher.Hash,
	}
}

// replayWindow covers every step the verifier accepts around now.
func (e *Engine) replayWindow() time.Duration {
	return time.Duration(2*e.config.TOTP.Skew+2) * e.totp.Period()
}

func limiterError(err, limited error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// challengeState maps a challenge lookup error to (open, backend error).
func challengeState(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, stores.ErrChallengeBackend):
		return false, err
	default:
		return false, nil
	}
}

func toEnrollment(in *twofactor.Enrollment) *Enrollment {
	if in == nil {
		return nil
	}
	return &Enrollment{Secret: in.Secret, URI: in.URI, QRCode: in.QRCode}
}

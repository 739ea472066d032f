package flows

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/notify"
)

// PasswordDeps captures reset-token and change-password dependencies.
type PasswordDeps struct {
	Runtime

	ResetTTL       time.Duration
	BaseURL        string
	RevokeSessions bool
	HistorySize    int

	// AllowResetRequest returns root errors already mapped.
	AllowResetRequest func(ctx context.Context, email string) error
	NewResetToken     func() (string, error)
	PolicyViolations  func(password string) []string
	HashPassword      func(password string) (string, error)
	VerifyPassword    func(password, encodedHash string) (bool, error)
}

// ResetRequestResult reports how a reset request ended. Degraded is set when
// the token was stored but its notification could not be delivered.
type ResetRequestResult struct {
	Degraded bool
}

func (d PasswordDeps) ready() bool {
	return d.Runtime.Ready() &&
		d.NewResetToken != nil &&
		d.HashPassword != nil &&
		d.VerifyPassword != nil
}

func normalizePasswordDeps(d *PasswordDeps) {
	d.Runtime.normalize()
	if d.AllowResetRequest == nil {
		d.AllowResetRequest = func(context.Context, string) error { return nil }
	}
	if d.PolicyViolations == nil {
		d.PolicyViolations = func(string) []string { return nil }
	}
	if d.ResetTTL <= 0 {
		d.ResetTTL = time.Hour
	}
}

// RunRequestPasswordReset issues a reset token for email. The response for an
// unknown or disabled account is identical to the success response.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordDeps) (ResetRequestResult, error) {
	normalizePasswordDeps(&deps)
	if !deps.ready() {
		return ResetRequestResult{}, deps.Errors.EngineNotReady
	}

	email = admin.NormalizeEmail(email)
	if email == "" {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", "", deps.Errors.InvalidRequest, reason("empty_email"))
		return ResetRequestResult{}, deps.Errors.InvalidRequest
	}
	if err := deps.AllowResetRequest(ctx, email); err != nil {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", "", err, func() map[string]string {
			return map[string]string{"email": email}
		})
		return ResetRequestResult{}, err
	}
	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	user, err := deps.Store.Users().GetByEmail(ctx, email)
	switch {
	case errors.Is(err, admin.ErrNotFound):
		deps.discardToken()
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", "", deps.Errors.UserNotFound, func() map[string]string {
			return map[string]string{"reason": "unknown_email", "email": email}
		})
		return ResetRequestResult{}, nil
	case err != nil:
		return ResetRequestResult{}, deps.storeError(err)
	case !user.CanLogin():
		deps.discardToken()
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, formatID(user.ID), "", deps.Errors.AccountInactive, reason("account_disabled"))
		return ResetRequestResult{}, nil
	}

	token, err := deps.NewResetToken()
	if err != nil {
		return ResetRequestResult{}, fmt.Errorf("generate reset token: %w", err)
	}
	now := deps.Now()
	expiresAt := now.Add(deps.ResetTTL)
	if err := deps.Store.Users().SetResetToken(ctx, user.ID, HashToken(token), expiresAt, now); err != nil {
		return ResetRequestResult{}, deps.storeError(err)
	}

	delivered := deps.send(ctx, notify.Message{
		Recipient: user.Email,
		Kind:      notify.KindPasswordReset,
		Data: map[string]string{
			notify.DataName:      user.Name,
			notify.DataResetLink: ResetLink(deps.BaseURL, token),
			notify.DataExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		},
	})
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, formatID(user.ID), "", nil, func() map[string]string {
		if delivered {
			return nil
		}
		return map[string]string{"reason": "notification_failed"}
	})
	return ResetRequestResult{Degraded: !delivered}, nil
}

// discardToken keeps the unknown-account path doing the same generation work
// as the real one.
func (d PasswordDeps) discardToken() {
	if _, err := d.NewResetToken(); err != nil {
		d.Logger.Debug("throwaway reset token failed", zap.Error(err))
	}
}

// ResetLink builds the link delivered in a reset notification.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// RunResetPassword redeems token and sets newPassword. The hash write and the
// token clear happen in one conditional statement, so a token is redeemable
// exactly once.
func RunResetPassword(ctx context.Context, token, newPassword string, deps PasswordDeps) error {
	normalizePasswordDeps(&deps)
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	if err := deps.checkPolicy(newPassword); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, "", "", err, reason("policy"))
		return err
	}
	if token == "" {
		return deps.resetFailure(ctx, "", "empty_token")
	}

	now := deps.Now()
	tokenHash := HashToken(token)
	user, err := deps.Store.Users().GetByResetToken(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return deps.resetFailure(ctx, "", "unknown_token")
		}
		return deps.storeError(err)
	}
	uid := formatID(user.ID)

	if err := deps.checkReuse(ctx, user, newPassword); err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, uid, "", err, reason("reuse"))
		return err
	}
	newHash, err := deps.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = deps.Store.WithinTx(ctx, func(tx admin.Store) error {
		userID, err := tx.Users().RedeemResetToken(ctx, tokenHash, newHash, now)
		if err != nil {
			return err
		}
		if err := tx.Users().AppendPasswordHistory(ctx, userID, newHash, now); err != nil {
			return err
		}
		if deps.RevokeSessions {
			if _, err := tx.Sessions().DeactivateUser(ctx, userID, "", now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return deps.resetFailure(ctx, uid, "token_consumed")
		}
		return deps.storeError(err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, uid, "", nil, nil)
	deps.notifyChanged(ctx, user)
	return nil
}

func (d PasswordDeps) resetFailure(ctx context.Context, uid, why string) error {
	d.MetricInc(d.Metrics.PasswordResetFailure)
	d.EmitAudit(ctx, d.Events.PasswordResetConfirm, false, uid, "", d.Errors.TokenExpiredOrUnknown, reason(why))
	return d.Errors.TokenExpiredOrUnknown
}

// RunChangePassword replaces the password of an authenticated user.
// keepTokenHash names the caller's own session, which survives revocation.
func RunChangePassword(ctx context.Context, userID int64, current, next, keepTokenHash string, deps PasswordDeps) error {
	normalizePasswordDeps(&deps)
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	uid := formatID(userID)
	user, err := deps.Store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			return deps.Errors.UserNotFound
		}
		return deps.storeError(err)
	}
	if !user.CanLogin() {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, uid, "", deps.Errors.AccountInactive, nil)
		return deps.Errors.AccountInactive
	}

	ok, err := deps.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, uid, "", deps.Errors.InvalidCredentials, reason("current_mismatch"))
		return deps.Errors.InvalidCredentials
	}
	if err := deps.checkPolicy(next); err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, uid, "", err, reason("policy"))
		return err
	}
	if err := deps.checkReuse(ctx, user, next); err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, uid, "", err, reason("reuse"))
		return err
	}

	newHash, err := deps.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := deps.Now()
	err = deps.Store.WithinTx(ctx, func(tx admin.Store) error {
		if err := tx.Users().SetPassword(ctx, user.ID, newHash, false, now); err != nil {
			return err
		}
		if err := tx.Users().AppendPasswordHistory(ctx, user.ID, newHash, now); err != nil {
			return err
		}
		if deps.RevokeSessions {
			if _, err := tx.Sessions().DeactivateUser(ctx, user.ID, keepTokenHash, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return deps.storeError(err)
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, uid, "", nil, nil)
	deps.notifyChanged(ctx, user)
	return nil
}

func (d PasswordDeps) checkPolicy(password string) error {
	if violations := d.PolicyViolations(password); len(violations) > 0 {
		return fmt.Errorf("%w: %s", d.Errors.PasswordPolicy, strings.Join(violations, "; "))
	}
	return nil
}

// checkReuse rejects the current password and the last HistorySize ones.
func (d PasswordDeps) checkReuse(ctx context.Context, user admin.User, password string) error {
	hashes := []string{user.PasswordHash}
	if d.HistorySize > 0 {
		recent, err := d.Store.Users().RecentPasswordHashes(ctx, user.ID, d.HistorySize)
		if err != nil {
			return d.storeError(err)
		}
		hashes = append(hashes, recent...)
	}
	for _, h := range hashes {
		if h == "" {
			continue
		}
		if ok, err := d.VerifyPassword(password, h); err == nil && ok {
			return d.Errors.PasswordReuse
		}
	}
	return nil
}

func (d PasswordDeps) notifyChanged(ctx context.Context, user admin.User) {
	d.send(ctx, notify.Message{
		Recipient: user.Email,
		Kind:      notify.KindPasswordChanged,
		Data:      map[string]string{notify.DataName: user.Name},
	})
}

package adminauth

import "github.com/MrEthical07/adminauth/internal/security"

// SecurityReport summarizes the engine's security-relevant settings.
type SecurityReport = security.Report

type PasswordConfigReport = security.PasswordReport

// SecurityReport returns the posture of the built configuration. A nil
// engine yields the zero report.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:  cfg.JWT.SigningMethod,
		SessionLifetime:   cfg.Session.Lifetime,
		InactivityCeiling: cfg.Session.InactivityCeiling,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			HistorySize: cfg.Password.HistorySize,
		},
		TOTPDigits:              cfg.TOTP.Digits,
		TOTPSkew:                cfg.TOTP.Skew,
		MaxLoginAttempts:        cfg.Login.MaxAttempts,
		LoginCooldown:           cfg.Login.Cooldown,
		EnableIPThrottle:        cfg.Login.EnableIPThrottle,
		RevealInactive:          cfg.Login.RevealInactive,
		ResetTokenTTL:           cfg.PasswordReset.TokenTTL,
		MaxResetRequests:        cfg.PasswordReset.MaxRequests,
		RevokeSessionsOnReset:   cfg.PasswordReset.RevokeSessions,
		RequireDistinctReviewer: cfg.Approval.RequireDistinctReviewer,
		AuditEnabled:            cfg.Audit.Enabled,
	})
}

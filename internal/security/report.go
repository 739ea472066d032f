package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	HistorySize int
}

// Report summarizes the security-relevant configuration of a built engine.
// Warnings lists settings that weaken the default posture.
type Report struct {
	SigningAlgorithm        string
	SessionLifetime         time.Duration
	InactivityCeiling       time.Duration
	Argon2                  PasswordReport
	TOTPDigits              int
	TOTPSkew                uint
	LoginThrottleActive     bool
	IPThrottleActive        bool
	RevealInactive          bool
	ResetTokenTTL           time.Duration
	ResetRateLimitActive    bool
	RevokeSessionsOnReset   bool
	RequireDistinctReviewer bool
	AuditEnabled            bool
	Warnings                []string
}

type ReportInput struct {
	SigningAlgorithm        string
	SessionLifetime         time.Duration
	InactivityCeiling       time.Duration
	Password                PasswordReport
	TOTPDigits              int
	TOTPSkew                uint
	MaxLoginAttempts        int
	LoginCooldown           time.Duration
	EnableIPThrottle        bool
	RevealInactive          bool
	ResetTokenTTL           time.Duration
	MaxResetRequests        int
	RevokeSessionsOnReset   bool
	RequireDistinctReviewer bool
	AuditEnabled            bool
}

// Argon2 memory below this (KiB) is reported as weak.
const recommendedArgonMemory = 64 * 1024

func BuildReport(input ReportInput) Report {
	r := Report{
		SigningAlgorithm:        input.SigningAlgorithm,
		SessionLifetime:         input.SessionLifetime,
		InactivityCeiling:       input.InactivityCeiling,
		Argon2:                  input.Password,
		TOTPDigits:              input.TOTPDigits,
		TOTPSkew:                input.TOTPSkew,
		LoginThrottleActive:     input.MaxLoginAttempts > 0 && input.LoginCooldown > 0,
		IPThrottleActive:        input.EnableIPThrottle,
		RevealInactive:          input.RevealInactive,
		ResetTokenTTL:           input.ResetTokenTTL,
		ResetRateLimitActive:    input.MaxResetRequests > 0,
		RevokeSessionsOnReset:   input.RevokeSessionsOnReset,
		RequireDistinctReviewer: input.RequireDistinctReviewer,
		AuditEnabled:            input.AuditEnabled,
	}

	if input.Password.Memory < recommendedArgonMemory {
		r.Warnings = append(r.Warnings, "argon2 memory below 64 MiB")
	}
	if input.RevealInactive {
		r.Warnings = append(r.Warnings, "login reveals inactive accounts")
	}
	if !input.RevokeSessionsOnReset {
		r.Warnings = append(r.Warnings, "password reset keeps existing sessions")
	}
	if !input.RequireDistinctReviewer {
		r.Warnings = append(r.Warnings, "requesters may approve their own requests")
	}
	if input.MaxResetRequests == 0 {
		r.Warnings = append(r.Warnings, "password reset requests are not rate limited")
	}
	if !input.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit trail disabled")
	}
	return r
}

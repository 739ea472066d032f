package adminauth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth/password"
)

// Config is the complete engine configuration. Start from [DefaultConfig],
// adjust, and pass it to [Builder.WithConfig]. The engine treats it as
// immutable after Build.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	TOTP          TOTPConfig
	Login         LoginConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Approval      ApprovalConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Redis         RedisConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the process-wide signing key. Token lifetime follows
// Session.Lifetime.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds session validity. A session is authoritative only
// while both limits hold.
type SessionConfig struct {
	// Lifetime is the ledger expiry set at issuance.
	Lifetime time.Duration
	// InactivityCeiling is measured from the token's issued-at.
	InactivityCeiling time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

type TOTPConfig struct {
	Issuer string
	Period uint
	Digits int
	// Skew is the number of periods accepted either side of now.
	Skew uint
	// ChallengeTTL bounds the gap between the credential and code stages.
	ChallengeTTL time.Duration
	// MaxAttempts wrong codes close the challenge.
	MaxAttempts int
	RedisPrefix string
}

/*
====================================
LOGIN CONFIG
====================================
*/

type LoginConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
	// RevealInactive returns ErrAccountInactive instead of
	// ErrInvalidCredentials for disabled accounts with a correct password.
	RevealInactive bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters (Memory in KiB) and the
// complexity policy.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool

	Policy password.Policy
	// HistorySize previous hashes are rejected on change and reset.
	HistorySize int
	// GeneratedLength is the length of passwords generated on approval.
	GeneratedLength int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

type PasswordResetConfig struct {
	TokenTTL time.Duration
	// BaseURL prefixes the /reset-password link sent to the user.
	BaseURL        string
	RevokeSessions bool
	// MaxRequests per email within RequestWindow. Zero disables the limit.
	MaxRequests   int
	RequestWindow time.Duration
}

/*
====================================
APPROVAL CONFIG
====================================
*/

type ApprovalConfig struct {
	RequireDistinctReviewer bool
	ListLimit               int
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig names the notification outbox stream. The client itself is
// supplied with Builder.WithRedis.
type RedisConfig struct {
	NotifyStream string
	NotifyMaxLen int64
}

// DefaultConfig returns the recommended configuration. Key material is left
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "adminauth",
		},
		Session: SessionConfig{
			Lifetime:          24 * time.Hour,
			InactivityCeiling: 15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:       "adminauth",
			Period:       30,
			Digits:       6,
			Skew:         1,
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  5,
			RedisPrefix:  "aa",
		},
		Login: LoginConfig{
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: false,
			RevealInactive:   false,
		},
		Password: PasswordConfig{
			Memory:          65536,
			Time:            3,
			Parallelism:     2,
			SaltLength:      16,
			KeyLength:       32,
			UpgradeOnLogin:  true,
			Policy:          password.DefaultPolicy(),
			HistorySize:     5,
			GeneratedLength: 16,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:       time.Hour,
			BaseURL:        "http://localhost:8080",
			RevokeSessions: true,
			MaxRequests:    5,
			RequestWindow:  time.Hour,
		},
		Approval: ApprovalConfig{
			RequireDistinctReviewer: true,
			ListLimit:               100,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.InactivityCeiling <= 0 {
		return errors.New("Session InactivityCeiling must be > 0")
	}
	if c.Session.InactivityCeiling > c.Session.Lifetime {
		return errors.New("Session InactivityCeiling must be <= Lifetime")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be <= 3")
	}
	if c.TOTP.ChallengeTTL <= 0 {
		return errors.New("TOTP ChallengeTTL must be > 0")
	}
	if c.TOTP.MaxAttempts <= 0 {
		return errors.New("TOTP MaxAttempts must be > 0")
	}

	// Login
	if c.Login.MaxAttempts <= 0 {
		return errors.New("Login MaxAttempts must be > 0")
	}
	if c.Login.Cooldown <= 0 {
		return errors.New("Login Cooldown must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.Policy.MinLength < 8 {
		return errors.New("Password Policy MinLength must be >= 8")
	}
	if c.Password.Policy.MaxLength != 0 && c.Password.Policy.MaxLength < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxLength must be >= MinLength")
	}
	if c.Password.HistorySize < 0 {
		return errors.New("Password HistorySize must be >= 0")
	}
	if c.Password.GeneratedLength < c.Password.Policy.MinLength {
		return errors.New("Password GeneratedLength must satisfy the policy MinLength")
	}

	// Password Reset
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}
	if u, err := url.Parse(c.PasswordReset.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("PasswordReset BaseURL must be an absolute URL")
	}
	if c.PasswordReset.MaxRequests < 0 {
		return errors.New("PasswordReset MaxRequests must be >= 0")
	}
	if c.PasswordReset.MaxRequests > 0 && c.PasswordReset.RequestWindow <= 0 {
		return errors.New("PasswordReset RequestWindow must be > 0 when MaxRequests is set")
	}

	// Approval
	if c.Approval.ListLimit <= 0 {
		return errors.New("Approval ListLimit must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.SinkTimeout < 0 {
		return errors.New("Audit SinkTimeout must be >= 0")
	}

	return nil
}

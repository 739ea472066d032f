// Package twofactor wraps RFC 6238 TOTP enrollment and verification.
package twofactor

import (
	"bytes"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	secretSize = 20
	qrSize     = 256
)

// Config holds the authenticator parameters.
type Config struct {
	Issuer string
	Period uint
	Digits otp.Digits
	// Skew is the number of periods accepted either side of now.
	Skew uint
}

// Enrollment is what a user needs to add the account to an authenticator app.
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"otpauth_uri"`
	// QRCode is a data:image/png;base64 URL of URI.
	QRCode string `json:"qr_code"`
}

type Manager struct {
	config Config
}

func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("totp issuer required")
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	if cfg.Digits == 0 {
		cfg.Digits = otp.DigitsSix
	}
	if cfg.Digits != otp.DigitsSix && cfg.Digits != otp.DigitsEight {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	if cfg.Skew > 3 {
		return nil, errors.New("totp skew must be <= 3")
	}
	return &Manager{config: cfg}, nil
}

// Period returns the step length.
func (m *Manager) Period() time.Duration {
	return time.Duration(m.config.Period) * time.Second
}

// Enroll creates a fresh secret for account.
func (m *Manager) Enroll(account string) (Enrollment, error) {
	return m.build(account, nil)
}

// EnrollmentFor rebuilds the provisioning artifact for an already stored secret.
func (m *Manager) EnrollmentFor(account, secret string) (Enrollment, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return Enrollment{}, fmt.Errorf("decode totp secret: %w", err)
	}
	return m.build(account, raw)
}

func (m *Manager) build(account string, secret []byte) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      m.config.Period,
		SecretSize:  secretSize,
		Secret:      secret,
		Digits:      m.config.Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return Enrollment{}, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Enrollment{}, fmt.Errorf("encode qr: %w", err)
	}

	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Verify checks code against the steps now-Skew..now+Skew. On a match it
// returns the matched step counter so callers can refuse a second use.
func (m *Manager) Verify(secret, code string, now time.Time) (int64, bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits.Length() || !numeric(code) {
		return 0, false, nil
	}
	if secret == "" {
		return 0, false, errors.New("empty totp secret")
	}

	period := int64(m.config.Period)
	base := now.Unix() / period
	skew := int64(m.config.Skew)
	opts := totp.ValidateOpts{
		Period:    m.config.Period,
		Digits:    m.config.Digits,
		Algorithm: otp.AlgorithmSHA1,
	}

	for step := base - skew; step <= base+skew; step++ {
		if step < 0 {
			continue
		}
		expected, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0), opts)
		if err != nil {
			return 0, false, err
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true, nil
		}
	}
	return 0, false, nil
}

func numeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

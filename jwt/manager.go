package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrInvalid covers malformed tokens, bad signatures and claim mismatches.
	ErrInvalid = errors.New("jwt: invalid token")
	// ErrExpired is returned when the exp claim is in the past.
	ErrExpired = errors.New("jwt: token expired")
)

// Config holds key material and validation settings.
type Config struct {
	SigningMethod SigningMethod
	// PrivateKey is the HMAC secret for hs256 or the ed25519 private key
	// (raw or PEM).
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	// Lifetime sets exp relative to iat. It matches the session ledger expiry.
	Lifetime time.Duration
	Leeway   time.Duration
	// MaxFutureIAT rejects tokens claiming to be issued too far ahead of now.
	MaxFutureIAT time.Duration
	KeyID        string
	// VerifyKeys maps kid to a verification key for rotation.
	VerifyKeys map[string][]byte
}

// Manager signs and verifies session tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// Claims is the token payload: {id, role, iat} plus exp, iss and a jti that
// names the session row.
type Claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionID returns the jti claim.
func (c *Claims) SessionID() string {
	return c.ID
}

// IssuedAtTime returns iat, or the zero time when absent.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Lifetime <= 0 {
		return nil, errors.New("invalid lifetime configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
		m.method = jwt.SigningMethodEdDSA
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return m, nil
}

// Sign issues a token for userID with iat set to issuedAt and exp to
// issuedAt+Lifetime. sessionID becomes the jti.
func (m *Manager) Sign(userID int64, role, sessionID string, issuedAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id required")
	}
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.config.Lifetime)),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	key, err := m.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

// Verify checks the signature and registered claims against now. It returns
// ErrExpired when only the exp check failed and ErrInvalid for anything else.
func (m *Manager) Verify(tokenStr string, now time.Time) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.UserID <= 0 || claims.ID == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing required claims", ErrInvalid)
	}
	if claims.IssuedAt.Time.After(now.Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalid)
	}

	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.verifyKeyFrom(key)
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	return parseEdPublicKey(m.config.PublicKey)
}

func (m *Manager) signKey() (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return m.config.PrivateKey, nil
	}
	if len(m.config.PrivateKey) == 0 {
		return nil, errors.New("ed25519 private key not configured")
	}
	return parseEdPrivateKey(m.config.PrivateKey)
}

func (m *Manager) verifyKeyFrom(key []byte) (interface{}, error) {
	if m.config.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

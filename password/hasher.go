package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmpty is returned when hashing an empty password.
	ErrEmpty = errors.New("password: empty")
	// ErrTooLong is returned when hashing a password above Config.MaxLength.
	ErrTooLong = errors.New("password: too long")
	// ErrUnknownFormat is returned for stored hashes that are neither PHC argon2id nor bcrypt.
	ErrUnknownFormat = errors.New("password: unknown hash format")
	// ErrMalformedHash is returned for argon2id strings that do not parse.
	ErrMalformedHash = errors.New("password: malformed argon2id hash")
)

// Scheme names the algorithm behind a stored hash.
type Scheme string

const (
	SchemeUnknown  Scheme = ""
	SchemeArgon2id Scheme = "argon2id"
	// SchemeBcrypt hashes come from the previous deployment. They verify
	// but are never produced.
	SchemeBcrypt Scheme = "bcrypt"
)

const (
	minMemoryKB uint32 = 8 * 1024
	minSaltLen  uint32 = 16
	minKeyLen   uint32 = 16
)

// Config sets the argon2id cost parameters. Memory is in KiB. MaxLength
// bounds the runes accepted by Hash and Verify; zero disables the bound.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MaxLength   int
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKB)
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLen:
		return fmt.Errorf("password salt length must be >= %d", minSaltLen)
	case c.KeyLength < minKeyLen:
		return fmt.Errorf("password key length must be >= %d", minKeyLen)
	case c.MaxLength < 0:
		return errors.New("password max length must be >= 0")
	}
	return nil
}

// Hasher hashes with argon2id and verifies both argon2id and legacy bcrypt
// hashes.
type Hasher struct {
	cfg Config
}

// NewHasher rejects parameters below the argon2id floor.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg}, nil
}

// Identify reports the scheme of a stored hash from its prefix.
func Identify(encodedHash string) Scheme {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return SchemeArgon2id
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return SchemeBcrypt
	default:
		return SchemeUnknown
	}
}

// Hash derives a fresh salted argon2id hash. Complexity is checked by
// Policy; Hash only enforces the length bounds.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmpty
	}
	if h.tooLong(password) {
		return "", ErrTooLong
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	p := argonParams{memory: h.cfg.Memory, time: h.cfg.Time, threads: h.cfg.Parallelism}
	key := p.derive(password, salt, h.cfg.KeyLength)
	return p.encode(salt, key), nil
}

// Verify dispatches on the stored scheme. A mismatch is (false, nil); an
// unreadable hash is an error. Passwords above MaxLength never match and
// are rejected before any key derivation.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	switch Identify(encodedHash) {
	case SchemeArgon2id:
		p, salt, key, err := decodeArgon2(encodedHash)
		if err != nil {
			return false, err
		}
		if h.tooLong(password) {
			return false, nil
		}
		computed := p.derive(password, salt, uint32(len(key)))
		return subtle.ConstantTimeCompare(computed, key) == 1, nil
	case SchemeBcrypt:
		if h.tooLong(password) {
			return false, nil
		}
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return err == nil, err
	default:
		return false, ErrUnknownFormat
	}
}

// NeedsUpgrade is true for every bcrypt hash and for argon2id hashes with
// weaker parameters or a different key length than the current Config.
func (h *Hasher) NeedsUpgrade(encodedHash string) (bool, error) {
	switch Identify(encodedHash) {
	case SchemeBcrypt:
		return true, nil
	case SchemeArgon2id:
		p, _, key, err := decodeArgon2(encodedHash)
		if err != nil {
			return false, err
		}
		return p.memory < h.cfg.Memory ||
			p.time < h.cfg.Time ||
			p.threads < h.cfg.Parallelism ||
			uint32(len(key)) != h.cfg.KeyLength, nil
	default:
		return false, ErrUnknownFormat
	}
}

func (h *Hasher) tooLong(password string) bool {
	return h.cfg.MaxLength > 0 && utf8.RuneCountInString(password) > h.cfg.MaxLength
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func (p argonParams) derive(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, keyLen)
}

// encode renders the PHC form $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decodeArgon2(encodedHash string) (argonParams, []byte, []byte, error) {
	var p argonParams
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, ErrMalformedHash
	}
	if p.memory < minMemoryKB || p.time < 1 || p.threads < 1 {
		return p, nil, nil, fmt.Errorf("%w: parameters below floor", ErrMalformedHash)
	}

	salt, err := decodeB64(parts[4])
	if err != nil || uint32(len(salt)) < minSaltLen {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := decodeB64(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return p, salt, key, nil
}

// decodeB64 accepts padded and unpadded base64 so hashes written by other
// argon2id implementations verify too.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

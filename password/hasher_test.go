package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	return Config{
		Memory:      16384,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MaxLength:   128,
	}
}

func newTestHasher(t *testing.T, cfg Config) *Hasher {
	t.Helper()
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestIdentify(t *testing.T) {
	cases := map[string]Scheme{
		"$argon2id$v=19$m=16384,t=2,p=2$c2FsdA$a2V5": SchemeArgon2id,
		"$2a$10$abcdefghijklmnopqrstuv":               SchemeBcrypt,
		"$2b$12$abcdefghijklmnopqrstuv":               SchemeBcrypt,
		"$2y$04$abcdefghijklmnopqrstuv":               SchemeBcrypt,
		"$argon2i$v=19$m=16384,t=2,p=2$c2FsdA$a2V5":  SchemeUnknown,
		"plaintext":                                   SchemeUnknown,
	}
	for in, want := range cases {
		if got := Identify(in); got != want {
			t.Fatalf("Identify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHashProducesCurrentArgon2id(t *testing.T) {
	h := newTestHasher(t, testConfig())

	hash, err := h.Hash("Str0ng!Pass")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=16384,t=2,p=2$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if Identify(hash) != SchemeArgon2id {
		t.Fatalf("expected argon2id scheme for %s", hash)
	}

	ok, err := h.Verify("Str0ng!Pass", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("Str0ng!Pasz", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}

	upgrade, err := h.NeedsUpgrade(hash)
	if err != nil || upgrade {
		t.Fatalf("expected no upgrade: %v %v", upgrade, err)
	}

	again, _ := h.Hash("Str0ng!Pass")
	if again == hash {
		t.Fatal("expected a fresh salt per hash")
	}
}

func TestVerifyAcceptsPaddedEncoding(t *testing.T) {
	h := newTestHasher(t, testConfig())

	salt := []byte("0123456789abcdef")
	key := argon2.IDKey([]byte("Padded#Pass1"), salt, 2, 16384, 2, 32)
	padded := fmt.Sprintf("$argon2id$v=19$m=16384,t=2,p=2$%s$%s",
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	)

	ok, err := h.Verify("Padded#Pass1", padded)
	if err != nil || !ok {
		t.Fatalf("expected padded hash to verify: ok=%v err=%v", ok, err)
	}
}

func TestNeedsUpgradeForWeakerArgon2(t *testing.T) {
	weak := testConfig()
	weak.Memory = 8192
	weak.Parallelism = 1
	old := newTestHasher(t, weak)

	hash, err := old.Hash("Old#Params1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	current := newTestHasher(t, testConfig())
	ok, err := current.Verify("Old#Params1", hash)
	if err != nil || !ok {
		t.Fatalf("expected old-parameter hash to verify: ok=%v err=%v", ok, err)
	}
	upgrade, err := current.NeedsUpgrade(hash)
	if err != nil || !upgrade {
		t.Fatalf("expected upgrade for weaker parameters: %v %v", upgrade, err)
	}
}

func TestLegacyBcryptVerifiesAndUpgrades(t *testing.T) {
	h := newTestHasher(t, testConfig())

	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy#Pass1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	ok, err := h.Verify("Legacy#Pass1", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected legacy hash to verify: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected mismatch: ok=%v err=%v", ok, err)
	}

	upgrade, err := h.NeedsUpgrade(string(legacy))
	if err != nil || !upgrade {
		t.Fatalf("expected bcrypt hash to need upgrade: %v %v", upgrade, err)
	}

	rehashed, err := h.Hash("Legacy#Pass1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if Identify(rehashed) != SchemeArgon2id {
		t.Fatalf("expected upgrade target to be argon2id, got %s", rehashed)
	}
}

func TestMaxLengthBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxLength = 12
	h := newTestHasher(t, cfg)

	if _, err := h.Hash(strings.Repeat("Aa1!", 4)); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	// runes, not bytes
	if _, err := h.Hash("Pässwörd1?ÄÖ"); err != nil {
		t.Fatalf("expected 12-rune password to hash: %v", err)
	}

	hash, err := h.Hash("Short#Pass1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := h.Verify(strings.Repeat("x", 4096), hash)
	if err != nil || ok {
		t.Fatalf("expected oversized input to be a plain mismatch: ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsMalformedHashes(t *testing.T) {
	h := newTestHasher(t, testConfig())

	hash, err := h.Hash("version-Test1!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	cases := map[string]string{
		"wrong version": strings.Replace(hash, "$v=19$", "$v=18$", 1),
		"weak memory":   strings.Replace(hash, "m=16384", "m=1024", 1),
		"missing part":  hash[:strings.LastIndex(hash, "$")],
		"bad salt":      strings.Replace(hash, "$argon2id$v=19$m=16384,t=2,p=2$", "$argon2id$v=19$m=16384,t=2,p=2$!!", 1),
	}
	for name, in := range cases {
		if _, err := h.Verify("version-Test1!", in); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%s: expected ErrMalformedHash, got %v", name, err)
		}
	}

	if _, err := h.Verify("x", "plaintext"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := h.NeedsUpgrade("plaintext"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat from NeedsUpgrade, got %v", err)
	}
}

func TestHashEmptyPassword(t *testing.T) {
	h := newTestHasher(t, testConfig())
	if _, err := h.Hash(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestNewHasherRejectsWeakConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 4096 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"max length":  func(c *Config) { c.MaxLength = -1 },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if _, err := NewHasher(cfg); err == nil {
			t.Fatalf("%s: expected config error", name)
		}
	}
}

func TestPolicyViolations(t *testing.T) {
	p := DefaultPolicy()

	cases := map[string]int{
		"Abcdef1!":   0,
		"abcdef1!":   1,
		"ABCDEF1!":   1,
		"Abcdefg!":   1,
		"Abcdefg1":   1,
		"Ab1!":       1,
		"":           5,
		"Pässwörd1?": 0,
	}
	for pw, want := range cases {
		if got := p.Violations(pw); len(got) != want {
			t.Fatalf("%q: expected %d violations, got %v", pw, want, got)
		}
	}

	err := p.Check("short")
	if !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
	if !strings.Contains(err.Error(), "at least 8") {
		t.Fatalf("expected length message, got %v", err)
	}
}

func TestGenerateSatisfiesPolicy(t *testing.T) {
	p := DefaultPolicy()
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		pw, err := Generate(16)
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if len(pw) != 16 {
			t.Fatalf("unexpected length %d", len(pw))
		}
		if err := p.Check(pw); err != nil {
			t.Fatalf("generated password fails policy: %v", err)
		}
		seen[pw] = struct{}{}
	}
	if len(seen) != 50 {
		t.Fatal("expected distinct generated passwords")
	}

	if _, err := Generate(4); err == nil {
		t.Fatal("expected short length to be rejected")
	}
}

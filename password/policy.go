package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// SpecialChars is the set counted as special characters by Policy.
const SpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// ErrPolicy is wrapped by every Policy violation.
var ErrPolicy = errors.New("password: does not meet policy")

// Policy describes password complexity requirements.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy requires eight characters with upper, lower, digit and special.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Violations lists every rule the password breaks, in a stable order.
func (p Policy) Violations(password string) []string {
	var out []string
	n := len([]rune(password))
	if n < p.MinLength {
		out = append(out, fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		out = append(out, fmt.Sprintf("must be at most %d characters long", p.MaxLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(SpecialChars, r):
			special = true
		}
	}
	if p.RequireUpper && !upper {
		out = append(out, "must contain an uppercase letter")
	}
	if p.RequireLower && !lower {
		out = append(out, "must contain a lowercase letter")
	}
	if p.RequireDigit && !digit {
		out = append(out, "must contain a digit")
	}
	if p.RequireSpecial && !special {
		out = append(out, "must contain a special character")
	}
	return out
}

// Check returns nil or an error wrapping ErrPolicy with the joined violations.
func (p Policy) Check(password string) error {
	v := p.Violations(password)
	if len(v) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPolicy, strings.Join(v, "; "))
}

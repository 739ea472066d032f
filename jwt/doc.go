// Package jwt signs and verifies the bearer tokens handed out after a
// completed two-step login. A token carries the user id, the role and the
// issue time; revocation lives in the session ledger, not in the token.
package jwt

// Package stores holds short-lived Redis records used between the two login
// steps: the pending second-factor challenge and the used-step markers that
// stop a TOTP code from being replayed.
//
// Records carry their own expiry in addition to the Redis TTL so callers can
// evaluate them against an injected clock. Mutations that read and write the
// same key use WATCH/MULTI with retry.
//
// This package does not verify codes or make login decisions; that belongs to
// internal/flows.
package stores

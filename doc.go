// Package adminauth is the identity and authorization engine for an
// administrative console: a two-stage login with lazily enrolled TOTP, a
// server-side session ledger with an inactivity ceiling, single-use password
// reset tokens and a maker-checker pipeline for privileged account changes.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// adminauth is the public surface. It exposes [Engine], [Builder], [Config],
// the sentinel errors and the result types. Persistence sits behind
// admin.Store (store/sqlstore implements it). Flow orchestration, rate
// limiting, second-factor challenges and audit dispatch live under internal/
// and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Apply a privileged mutation outside ResolveRequest.
//   - Import any sub-package that re-imports adminauth (no import cycles).
//
// # Session contract
//
// A token authorizes a request only while both guards hold: no more than
// Session.InactivityCeiling has passed since it was issued, and its ledger row
// is active and unexpired. Logout and every revocation act on the row.
package adminauth

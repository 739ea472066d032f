// Package middleware exposes HTTP middleware that authorizes requests with
// adminauth.Engine.
//
// # Guards
//
//   - [RequireSession] validates the bearer token (both session guards) and
//     stores the resulting identity in the request context.
//   - [RequirePermission] additionally checks the caller's role.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. All decisions are
// delegated to Engine.Validate and Engine.HasPermission.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the credential store.
package middleware

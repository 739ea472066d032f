// Package httpapi serves the engine over JSON/HTTP with a chi router.
//
// Unauthenticated /auth routes sit behind a per-IP httprate limit. Session
// routes run middleware.RequireSession, and engine sentinel errors map to
// status codes through a single table in errors.go.
package httpapi

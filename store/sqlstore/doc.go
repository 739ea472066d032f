// Package sqlstore implements the admin repositories on a relational database
// through sqlx. PostgreSQL (pgx) is the production driver; SQLite (modernc)
// serves local development and tests.
//
// All coordination happens in SQL: conditional UPDATEs guard single-use
// tokens and single resolution of pending requests, unique constraints guard
// emails and session tokens.
package sqlstore

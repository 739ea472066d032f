// Package internal holds helpers private to adminauth: reset token
// generation and the digest stored in place of bearer and reset tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: flow orchestrators behind every Engine operation
//   - rate: Redis-backed login and reset limiters
//   - stores: Redis login challenges and TOTP replay markers
//   - twofactor: TOTP enrollment and verification
//   - security: configuration posture report
//   - httpapi, appconfig: the adminauthd HTTP server and its configuration
package internal

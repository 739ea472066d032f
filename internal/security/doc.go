// Package security builds the configuration posture report exposed by
// Engine.SecurityReport and logged by adminauthd at startup.
package security

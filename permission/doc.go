// Package permission maps administrator roles to permission sets.
//
// Permissions are registered once at startup, each receiving a bit in a
// 64-bit mask; roles are masks over those bits. The highest bit is reserved
// as the root bit: a role holding it passes every check. Both the registry
// and the role table are frozen before the engine serves requests.
//
// This package performs no I/O.
package permission

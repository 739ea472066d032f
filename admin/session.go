package admin

import "time"

// LoginSession is the server-side record of one issued bearer token.
// Rows are deactivated, never deleted.
type LoginSession struct {
	ID               string
	UserID           int64
	TokenHash        string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	SourceIP         string
	ClientDescriptor string
	Active           bool
}

// Live reports whether the row still authorizes its token at now.
func (s LoginSession) Live(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

package model

import "time"

// UpstreamCredential holds the Schedules Direct username and password an end
// user typed in. It only lives for the duration of a connect request and is
// never persisted.
type UpstreamCredential struct {
	Username string
	Password string
}

// UpstreamSession is a Schedules Direct bearer token with the time after which
// it must no longer be used. A new session replaces the old one wholesale.
type UpstreamSession struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s UpstreamSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

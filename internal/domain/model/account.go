package model

import "time"

// SDAccount links a local account to a Schedules Direct login. SealedToken is
// the vault-sealed upstream token; the plaintext token is never stored.
type SDAccount struct {
	AccountID      string
	Username       string
	SealedToken    string
	TokenExpiresAt time.Time
	LastSuccess    time.Time // zero until the first successful upstream call
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TokenExpired reports whether the stored upstream token has passed its expiry.
// A zero expiry is treated as expired.
func (a SDAccount) TokenExpired(now time.Time) bool {
	return a.TokenExpiresAt.IsZero() || !now.Before(a.TokenExpiresAt)
}

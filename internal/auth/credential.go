package auth

import "time"

// Credential holds the bearer tokens for one account session.
// The zero value is the unauthenticated state.
type Credential struct {
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	Authenticated bool

	// Strategy names the sign-in strategy that issued this credential, so a
	// refresh can be routed back to the protocol that understands the
	// refresh token.
	Strategy string
}

// Consistent reports whether the credential satisfies its core invariant:
// Authenticated implies a non-empty access token. An inconsistent credential
// must be cleared before any further use.
func (c Credential) Consistent() bool {
	return !c.Authenticated || c.AccessToken != ""
}

// Expired reports whether the credential is past its expiry at the given
// time. A missing expiry counts as expired.
func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.After(c.ExpiresAt)
}

// ExpiringSoon reports whether the credential is within skew of its expiry
// at the given time. A missing expiry counts as expiring.
func (c Credential) ExpiringSoon(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.After(c.ExpiresAt.Add(-skew))
}

// Usable reports whether the credential can authorize a request right now:
// authenticated, token present, and not expired.
func (c Credential) Usable(now time.Time) bool {
	return c.Authenticated && c.AccessToken != "" && !c.Expired(now)
}

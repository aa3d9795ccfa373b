package security

import "time"

// DefaultClockSkewGracePeriod tolerates small clock differences between
// this service and the provider when judging token expiry.
const DefaultClockSkewGracePeriod = 30 * time.Second

// IsTokenExpired reports whether a token with the given expiry should be
// treated as expired, applying the default clock-skew grace period.
func IsTokenExpired(expiresAt time.Time) bool {
	return IsTokenExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsTokenExpiredWithGracePeriod reports whether a token is expired once
// the grace period is subtracted from its expiry. A zero expiry means the
// provider set no lifetime and the token is treated as non-expiring.
func IsTokenExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(-gracePeriod))
}

package reliability

import (
	"net/http"
	"time"
)

// IsRateLimitStatus reports whether an HTTP status signals provider quota
// exhaustion. Only this class is retried by the synthesis transport.
func IsRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests
}

// FixedBackoff returns the flat delay used between rate-limited synthesis
// attempts. The provider's quota window resets on a fixed cadence, so an
// exponential schedule buys nothing over a flat wait sized past the window.
func FixedBackoff(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// ABOUTME: Retry backoff used by the optional embedding provider
// ABOUTME: Exponential with jitter, capped at 30 seconds
package util

import (
	"math/rand/v2"
	"time"
)

// Backoff returns the delay before the given retry attempt: exponential in
// the attempt number with +/-25% jitter, capped at 30 seconds.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

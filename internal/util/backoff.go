package util

import (
	"math"
	"time"
)

// CalculateExponentialBackoff computes exponential backoff with optional
// jitter. Formula: baseDelay * 2^(attempt-1), capped at maxDelay. Nothing in
// this module calls it; the dispatcher and the recovery sweep use fixed
// delays.
func CalculateExponentialBackoff(attempt int, baseDelay, maxDelay time.Duration, jitterPercent float64) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(baseDelay) * math.Pow(2, float64(attempt-1))

	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	if jitterPercent > 0 {
		// time-based pseudo-random avoids importing math/rand for a single call site
		pseudoRandom := float64(time.Now().UnixNano()%1000) / 1000.0
		jitter := backoff * jitterPercent * (pseudoRandom - 0.5)
		backoff += jitter
	}

	return time.Duration(backoff)
}

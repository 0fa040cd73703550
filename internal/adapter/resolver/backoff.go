package resolver

import (
	"math"
	"time"
)

// ExponentialBackoff computes attempt's delay as baseDelay*2^(attempt-1),
// capped at maxDelay, with optional +/-jitterPercent/2 jitter. It is a
// standalone helper: no resolver or pool code calls it.
func ExponentialBackoff(attempt int, baseDelay, maxDelay time.Duration, jitterPercent float64) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(baseDelay) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	if jitterPercent > 0 {
		pseudoRandom := float64(time.Now().UnixNano()%1000) / 1000.0
		jitter := backoff * jitterPercent * (pseudoRandom - 0.5)
		backoff += jitter
	}

	return time.Duration(backoff)
}

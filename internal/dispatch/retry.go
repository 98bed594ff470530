package dispatch

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts bounds recognition attempts per page, first try
	// included.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase seeds the exponential wait between attempts.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultBackoffCap bounds a single backoff wait.
	DefaultBackoffCap = 30 * time.Second
)

// Backoff returns the wait before retry number retry (1-based): the base
// delay doubled for every retry, bounded by cap, plus jitter so concurrent
// pages do not retry in lockstep. The deterministic floor base×2^(retry-1)
// is never undercut by the jitter.
func Backoff(base, cap time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	if retry < 1 {
		retry = 1
	}

	d := base << (retry - 1)
	if d <= 0 {
		// Shifted past the range of time.Duration.
		d = cap
	}
	if cap > 0 && d > cap {
		d = cap
	}

	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

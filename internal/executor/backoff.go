package executor

import (
	"math/rand/v2"
	"time"
)

// expBackOff yields min(base*2^(n-1) + jitter, MaxRetryDelay) for the n-th
// retry. It implements backoff.BackOff.
type expBackOff struct {
	base   time.Duration
	jitter func() time.Duration
	n      int
}

func newExpBackOff(base time.Duration, jitter func() time.Duration) *expBackOff {
	return &expBackOff{base: base, jitter: jitter}
}

func (b *expBackOff) NextBackOff() time.Duration {
	b.n++
	return retryDelay(b.base, b.n, b.jitter())
}

func (b *expBackOff) Reset() { b.n = 0 }

// retryDelay is the wait before retry n (1-based).
func retryDelay(base time.Duration, n int, jitter time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	// Past 2^30 the cap applies anyway; avoid shifting into overflow.
	if n > 31 {
		return MaxRetryDelay
	}
	d := base << (n - 1)
	if d <= 0 || d >= MaxRetryDelay {
		return MaxRetryDelay
	}
	d += jitter
	if d > MaxRetryDelay {
		return MaxRetryDelay
	}
	return d
}

func defaultJitter() time.Duration {
	return rand.N(MaxJitter)
}

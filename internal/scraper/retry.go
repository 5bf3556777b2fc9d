package scraper

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// RetryPolicy decides whether and when a failed fetch attempt is retried.
// It is a pure function of the attempt count plus configured bounds, so the
// retry loop in the runner stays trivial.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// MaxElapsed caps the total time spent waiting between attempts.
	MaxElapsed time.Duration
}

// DefaultRetryPolicy returns the bounds used when configuration is silent.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
		MaxElapsed: 2 * time.Minute,
	}
}

// ShouldRetry reports whether another attempt is allowed after the given
// number of failed attempts and the total wait already spent.
func (p RetryPolicy) ShouldRetry(attempt int, elapsed time.Duration) bool {
	if attempt > p.MaxRetries {
		return false
	}
	if p.MaxElapsed > 0 && elapsed >= p.MaxElapsed {
		return false
	}
	return true
}

// Backoff returns the jittered wait before attempt n (1-based retry count).
// The delay doubles per attempt up to MaxDelay; half of it is randomized so
// concurrent failing sites do not fall into lockstep.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

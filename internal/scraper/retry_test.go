package scraper

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_BackoffBounded(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
	}

	for attempt := 1; attempt <= 10; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, p.MaxDelay)
	}
}

func TestRetryPolicy_BackoffGrows(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxRetries: 5, BaseDelay: 80 * time.Millisecond, MaxDelay: time.Minute}

	// Jitter randomizes the upper half, so compare deterministic lower halves.
	require.GreaterOrEqual(t, p.Backoff(3), 80*2*2*time.Millisecond/2)
	require.GreaterOrEqual(t, p.Backoff(5), 80*16*time.Millisecond/2)
}

func TestRetryPolicy_ShouldRetryLimits(t *testing.T) {
	t.Parallel()

	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxElapsed: time.Second}

	require.True(t, p.ShouldRetry(1, 0))
	require.True(t, p.ShouldRetry(3, 0))
	require.False(t, p.ShouldRetry(4, 0))
	require.False(t, p.ShouldRetry(1, 2*time.Second))
}

func TestFetchError_TransientClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       *FetchError
		transient bool
	}{
		{"timeout", &FetchError{Kind: FetchErrTimeout}, true},
		{"network", &FetchError{Kind: FetchErrNetwork, Err: errors.New("conn refused")}, true},
		{"status 503", &FetchError{Kind: FetchErrHTTPStatus, Status: 503}, true},
		{"status 429", &FetchError{Kind: FetchErrHTTPStatus, Status: 429}, true},
		{"status 404", &FetchError{Kind: FetchErrHTTPStatus, Status: 404}, false},
		{"status 403", &FetchError{Kind: FetchErrHTTPStatus, Status: 403}, false},
		{"blocked", &FetchError{Kind: FetchErrBlocked}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.transient, tc.err.Transient())
			require.Equal(t, tc.transient, IsTransientFetch(tc.err))
		})
	}
}

func TestIsTransientFetch_UnclassifiedErrors(t *testing.T) {
	t.Parallel()

	require.False(t, IsTransientFetch(errors.New("plain error")))
	require.False(t, IsTransientFetch(nil))
}

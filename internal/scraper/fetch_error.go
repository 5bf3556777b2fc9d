package scraper

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies a failed retrieval.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchErrTimeout    FetchErrorKind = "timeout"
	FetchErrHTTPStatus FetchErrorKind = "http_status"
	FetchErrNetwork    FetchErrorKind = "network"
	FetchErrBlocked    FetchErrorKind = "blocked"
)

// FetchError is a classified fetch failure. Status is set for the
// http_status kind only.
type FetchError struct {
	Kind   FetchErrorKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchErrHTTPStatus {
		return fmt.Sprintf("fetch failed: http status %d", e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s)", e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether the failure is expected to resolve on retry.
// Timeouts, network errors, 5xx, and 429 are transient; other HTTP statuses
// and blocked fetches are not.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case FetchErrTimeout, FetchErrNetwork:
		return true
	case FetchErrHTTPStatus:
		return e.Status >= 500 || e.Status == 429
	default:
		return false
	}
}

// IsTransientFetch reports whether err is a transient FetchError.
// Unclassified errors are treated as non-transient so a bug in error
// classification cannot cause an unbounded retry loop.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient()
	}
	return false
}

package core

import (
	"errors"
	"fmt"
)

// ErrCycleInFlight is returned when a cycle is requested for a playlist
// whose previous cycle has not yet reached Done or Failed.
var ErrCycleInFlight = errors.New("cycle already in flight for playlist")

type FetchErrorKind int

const (
	// FetchErrNetwork covers timeouts, connection failures and rate limits
	FetchErrNetwork FetchErrorKind = iota
	// FetchErrAuth covers rejected or expired credentials
	FetchErrAuth
	// FetchErrNotFound covers unknown or deleted playlist identifiers
	FetchErrNotFound
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchErrAuth:
		return "auth"
	case FetchErrNotFound:
		return "not_found"
	default:
		return "network"
	}
}

// FetchError classifies a playlist fetch failure. The coordinator treats
// every kind as transient and retries on the next pass; the kind only feeds
// log lines and metrics.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("playlist fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

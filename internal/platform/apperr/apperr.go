package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingSourceData marks transitions whose required inputs are absent.
	ErrMissingSourceData = errors.New("missing source data")
)

// TransportError carries the HTTP status of a failed fetch. The status-code
// class decides whether the message transport should redeliver the request
// (5xx, 408, 429) or route the asset to its terminal failed state.
type TransportError struct {
	URL        string
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *TransportError) Retriable() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == 408, e.StatusCode == 429:
		return true
	default:
		return false
	}
}

// IsRetriable reports whether err (or anything it wraps) is a retriable
// transport failure.
func IsRetriable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retriable()
	}
	return false
}

package ics

import (
	"fmt"
	"net/http"
)

// TransportError means the feed could not be fetched: network failure or a
// non-2xx response with nothing cached to fall back to.
type TransportError struct {
	URL        string
	StatusCode int // 0 for network-level failures
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %d %s", redactURL(e.URL), e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", redactURL(e.URL), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the feed body is not a valid iCalendar document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse ics: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError means a caller-supplied reference time is not a valid
// ISO-8601 instant.
type ValidationError struct {
	Input string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reference time %q: %v", e.Input, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

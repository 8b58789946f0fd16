package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Reason tags why a fetch failed. A fetch never returns an empty body with a
// nil error when something went wrong.
type Reason string

const (
	ReasonTimeout     Reason = "timeout"
	ReasonConnection  Reason = "connection"
	ReasonRateLimited Reason = "rate_limited"
	ReasonBlocked     Reason = "blocked"
	ReasonServer      Reason = "server"
	ReasonValidation  Reason = "validation"
	ReasonExhausted   Reason = "exhausted"
)

// Error is a tagged fetch failure.
type Error struct {
	Reason Reason
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the failure reason, or "" for untagged errors.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// classifyTransportErr maps low-level transport errors to the taxonomy.
func classifyTransportErr(url string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Reason: ReasonTimeout, URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Reason: ReasonTimeout, URL: url, Err: err}
	}
	return &Error{Reason: ReasonConnection, URL: url, Err: err}
}

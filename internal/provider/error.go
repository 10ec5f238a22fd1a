package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a provider failure for retry purposes.
type Kind string

// List of provider error kinds
const (
	// KindAuth - bad or expired credentials; retrying cannot help without
	// operator action.
	KindAuth Kind = "auth"
	// KindTransient - timeout or provider-side fault; safe to retry.
	KindTransient Kind = "transient"
	// KindRejected - the provider declined the request; terminal for this
	// attempt.
	KindRejected Kind = "rejected"
)

// Error is a classified provider failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified provider error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from err; unclassified errors count
// as transient so that an unexpected failure is retried rather than
// terminal.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// classifyStatus maps an HTTP response status to an error kind.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return KindTransient
	default:
		return KindRejected
	}
}

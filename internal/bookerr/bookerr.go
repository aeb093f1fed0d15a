// Package bookerr defines the rejection kinds reported by the booking core.
//
// Expected business rejections are returned as *Error values; callers branch
// on the kind with errors.Is against the exported sentinels, or read Kind and
// Reason directly to build a specific message. Storage faults are never
// wrapped in an *Error.
package bookerr

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection.
type Kind string

const (
	SlotUnavailable     Kind = "slot_unavailable"
	CreditExhausted     Kind = "credit_exhausted"
	InvalidTransition   Kind = "invalid_transition"
	RateNotConfigured   Kind = "rate_not_configured"
	ConcurrencyConflict Kind = "concurrency_conflict"
	NotFound            Kind = "not_found"
	CancellationClosed  Kind = "cancellation_closed"
	InvalidRequest      Kind = "invalid_request"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrSlotUnavailable     = &Error{Kind: SlotUnavailable}
	ErrCreditExhausted     = &Error{Kind: CreditExhausted}
	ErrInvalidTransition   = &Error{Kind: InvalidTransition}
	ErrRateNotConfigured   = &Error{Kind: RateNotConfigured}
	ErrConcurrencyConflict = &Error{Kind: ConcurrencyConflict}
	ErrNotFound            = &Error{Kind: NotFound}
	ErrCancellationClosed  = &Error{Kind: CancellationClosed}
	ErrInvalidRequest      = &Error{Kind: InvalidRequest}
)

// Error is a structured business rejection.
type Error struct {
	Kind Kind
	// Reason names the specific check that failed, e.g. "buffer_overlap".
	Reason  string
	Message string
	Err     error
}

// New returns a rejection of kind with a formatted message.
func New(kind Kind, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a rejection of kind that keeps err as its cause.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind. A target carrying a Reason only
// matches that reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// KindOf extracts the rejection kind from err.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

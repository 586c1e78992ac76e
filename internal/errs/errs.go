// Package errs implements the error-kind taxonomy of spec.md §7 and the
// mapping from transport status codes onto it.
package errs

import "fmt"

// Kind is one of the closed set of error kinds spec.md §7 names. It is
// exported so callers can switch on it without type-asserting every
// concrete error type.
type Kind string

const (
	KindInvalidLocator      Kind = "invalid_locator"
	KindNoHealthyEndpoints  Kind = "no_healthy_endpoints"
	KindTransportUnavailable Kind = "transport_unavailable"
	KindTransportDeadline   Kind = "transport_deadline"
	KindMessageTooLarge     Kind = "message_too_large"
	KindRemoteFailure       Kind = "remote_failure"
	KindLobReferenceMissing Kind = "lob_reference_missing"
	KindProtocolViolation   Kind = "protocol_violation"
	KindCancelled           Kind = "cancelled"
)

// Retryable reports whether the Call Dispatcher may retry a call that
// failed with this kind on a different endpoint, per spec.md §4.4.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransportUnavailable, KindTransportDeadline, KindNoHealthyEndpoints:
		return true
	default:
		return false
	}
}

// Error is the single error type raised by this module. Err, when set,
// carries the underlying cause (a transport error, a parse failure, ...).
type Error struct {
	Kind     Kind
	Message  string
	Endpoint string // host:port, when the error is attributable to one endpoint
	Err      error
}

func (e *Error) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("%s: %s (endpoint %s)", e.Kind, e.Message, e.Endpoint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, errs.Sentinel(errs.KindX)) to work by comparing
// kinds directly against a bare *Error carrying only that Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func WithEndpoint(kind Kind, message, endpoint string, err error) *Error {
	return &Error{Kind: kind, Message: message, Endpoint: endpoint, Err: err}
}

// Sentinel returns a bare *Error usable as an errors.Is target for a kind,
// e.g. errors.Is(err, errs.Sentinel(errs.KindMessageTooLarge)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

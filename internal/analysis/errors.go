package analysis

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalidArgument
)

// Code is the caller-visible error code.
func (k Kind) Code() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid-argument"
	default:
		return "internal"
	}
}

// Status is the canonical upper-case status used on the callable wire.
func (k Kind) Status() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "INTERNAL"
	}
}

const (
	MessageUnauthenticated = "The function must be called while authenticated."
	MessageMissingText     = "The function must be called with the 'text' argument."
	MessageInternal        = "An error occurred while trying to analyze the report."
)

var (
	ErrEmptyResponse     = errors.New("empty or invalid response from AI")
	ErrMalformedResponse = errors.New("model response is not valid JSON")
	ErrUnexpectedShape   = errors.New("model response does not match the report analysis shape")
)

// Error is a classified failure. Message is safe to return to callers; Err carries
// the internal detail for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError classifies any error. Unclassified errors become a sanitized internal error.
func AsError(err error) *Error {
	var aErr *Error
	if errors.As(err, &aErr) {
		return aErr
	}
	return &Error{Kind: KindInternal, Message: MessageInternal, Err: err}
}

// Cause names the failure for logs and metrics.
func Cause(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrUnexpectedShape):
		return "unexpected_shape"
	}
	switch AsError(err).Kind {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "upstream_error"
	}
}

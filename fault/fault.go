// Package fault defines the error taxonomy shared across the orchestrator.
// Callers branch on Kind (errors.As / fault.IsKind), never on message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	KindValidation Kind = "validation" // malformed request shape
	KindNotFound   Kind = "not_found"  // unknown task ID or tool name
	KindTimeout    Kind = "timeout"    // awaited operation exceeded its deadline
	KindSandbox    Kind = "sandbox"    // disallowed operation inside the code tool
	KindUpstream   Kind = "upstream"   // generation endpoint returned non-2xx or garbage
	KindInternal   Kind = "internal"   // anything else
)

// Error is the base worker error carrying a kind, an HTTP-ish status code,
// and optional structured detail.
type Error struct {
	Kind   Kind
	Status int
	Msg    string
	Detail map[string]any
	Err    error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Validation reports a malformed request.
func Validation(format string, args ...any) *Error { return New(KindValidation, format, args...) }

// NotFound reports an unknown task or tool.
func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

// Timeout reports a deadline expiry on an awaited operation.
func Timeout(format string, args ...any) *Error { return New(KindTimeout, format, args...) }

// Sandbox reports a disallowed construct inside the code tool.
func Sandbox(format string, args ...any) *Error { return New(KindSandbox, format, args...) }

// Upstream reports a failure from the generation endpoint.
func Upstream(format string, args ...any) *Error { return New(KindUpstream, format, args...) }

// KindOf returns the Kind of err, or KindInternal if err carries no Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries an Error of the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindTimeout:
		return 504
	case KindSandbox:
		return 422
	case KindUpstream:
		return 502
	default:
		return 500
	}
}

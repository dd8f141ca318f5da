package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// InternalError is the error type produced by this package's builder chain.
// It carries a human hint and machine readable details alongside the wrapped
// cause, and is classified by marking it with one of the sentinel errors.
type InternalError struct {
	err     error
	hint    string
	details map[string]any
}

// NewError starts a builder chain from a message
func NewError(message string) *InternalError {
	return &InternalError{err: errors.NewWithDepth(1, message)}
}

// NewErrorf starts a builder chain from a formatted message
func NewErrorf(format string, args ...any) *InternalError {
	return &InternalError{err: errors.NewWithDepthf(1, format, args...)}
}

// WithError starts a builder chain from an existing error, preserving it as
// the cause
func WithError(err error) *InternalError {
	if err == nil {
		err = errors.NewWithDepth(1, "unknown error")
	}
	return &InternalError{err: err}
}

// WithHint attaches a human readable hint suitable for display to a caller
func (e *InternalError) WithHint(hint string) *InternalError {
	e.hint = hint
	return e
}

// WithHintf attaches a formatted hint
func (e *InternalError) WithHintf(format string, args ...any) *InternalError {
	e.hint = fmt.Sprintf(format, args...)
	return e
}

// WithReportableDetails attaches machine readable details that are safe to
// surface to the caller (field names, identifiers, limits)
func (e *InternalError) WithReportableDetails(details map[string]any) *InternalError {
	e.details = details
	return e
}

// Mark classifies the error with a sentinel and finalizes the chain. The
// returned error satisfies errors.Is(err, sentinel).
func (e *InternalError) Mark(sentinel error) error {
	e.err = errors.Mark(e.err, sentinel)
	return e
}

func (e *InternalError) Error() string {
	return e.err.Error()
}

func (e *InternalError) Unwrap() error {
	return e.err
}

// Hint extracts the hint from an error built by this package, if any
func Hint(err error) string {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.hint
	}
	return ""
}

// Details extracts the reportable details from an error built by this
// package, if any
func Details(err error) map[string]any {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.details
	}
	return nil
}

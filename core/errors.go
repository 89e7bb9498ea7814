package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can react without string
// matching. The set is closed: components never invent new kinds.
type ErrorKind string

const (
	// KindNotFound indicates an unknown session, agent or group identifier.
	KindNotFound ErrorKind = "not_found"
	// KindExpired indicates a session past its TTL. Distinct from
	// KindNotFound so callers can tell "never existed" from "timed out".
	KindExpired ErrorKind = "expired"
	// KindInvalidInput indicates a malformed identifier, a multi-valued
	// header where a scalar was expected, an empty capability set, etc.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindUnreachable indicates the target agent endpoint could not be
	// contacted at all.
	KindUnreachable ErrorKind = "unreachable"
	// KindTimeout indicates no response arrived within the deadline.
	KindTimeout ErrorKind = "timeout"
	// KindConflict indicates an operation on a closed or otherwise terminal
	// resource (e.g. broadcasting into a closed group session).
	KindConflict ErrorKind = "conflict"
)

// Error is the structured error type surfaced by every component. Callers
// can use errors.As to extract it:
//
//	var coordErr *core.Error
//	if errors.As(err, &coordErr) {
//	    if coordErr.Kind == core.KindTimeout { ... }
//	}
//
// Target identifies the resource involved (session id, agent id, group id)
// and Attempts counts delivery tries for retryable kinds.
type Error struct {
	Kind     ErrorKind
	Op       string // operation that failed, e.g. "channel.send"
	Target   string // resource or endpoint involved
	Attempts int    // delivery attempts made (0 when not applicable)
	Err      error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Target != "" {
		msg += fmt.Sprintf(" (%s)", e.Target)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause, enabling errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a structured error for the given kind and operation.
func NewError(kind ErrorKind, op, target string) *Error {
	return &Error{Kind: kind, Op: op, Target: target}
}

// WrapError constructs a structured error wrapping an underlying cause.
func WrapError(kind ErrorKind, op, target string, err error) *Error {
	return &Error{Kind: kind, Op: op, Target: target, Err: err}
}

// KindOf returns the ErrorKind carried by err, or an empty kind when err is
// nil or not a *Error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }

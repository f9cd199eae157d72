// Package rerr bridges Go's error type to RayforceDB's value-level error
// taxonomy (spec.md §7: "Errors are values: ERROR compounds carrying an
// error-kind byte, a message, and optional source-span metadata"). New code
// (core/eval, turbo/ipc, cmd/rayforce) raises a *rerr.Error directly so its
// Kind survives to ToValue unambiguously; errors surfacing from
// lower layers that predate this package (rlib/dispatch, rlib/storage) are
// classified by message heuristics in ToValue as a pragmatic bridge.
package rerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// Error is a Go error carrying a stable value.ErrorKind, so callers that
// want the typed taxonomy (rather than string sniffing) can attach it at
// the point an error is raised.
type Error struct {
	Kind value.ErrorKind
	Msg  string
	Span *value.DebugInfo
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

// New constructs a *Error with a formatted message.
func New(kind value.ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WithSpan attaches a source span and returns e for chaining at the raise site.
func (e *Error) WithSpan(span *value.DebugInfo) *Error {
	e.Span = span
	return e
}

// ToValue converts any error into an ERROR compound. A *rerr.Error carries
// its kind through unchanged; any other error (typically a plain
// fmt.Errorf from a lower layer) is classified by the phrasing its authors
// use consistently ("length mismatch", "arity", etc.) since those layers
// were not built against this package.
func ToValue(err error) *value.ErrorVal {
	var re *Error
	if errors.As(err, &re) {
		e := value.NewError(re.Kind, re.Msg)
		e.Span = re.Span
		return e
	}
	return value.NewError(classify(err), err.Error())
}

func classify(err error) value.ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "length"):
		return value.ErrLength
	case strings.Contains(msg, "arity"), strings.Contains(msg, "argument"):
		return value.ErrArity
	case strings.Contains(msg, "unbound"), strings.Contains(msg, "undefined"), strings.Contains(msg, "not found"):
		return value.ErrDomain
	case strings.Contains(msg, "open"), strings.Contains(msg, "read"), strings.Contains(msg, "write"), strings.Contains(msg, "lock"):
		return value.ErrIO
	case strings.Contains(msg, "alloc"), strings.Contains(msg, "memory"), strings.Contains(msg, "arena"):
		return value.ErrMemory
	case strings.Contains(msg, "not implemented"):
		return value.ErrNotImplemented
	case strings.Contains(msg, "not supported"):
		return value.ErrNotSupported
	case strings.Contains(msg, "type"), strings.Contains(msg, "unsupported"), strings.Contains(msg, "incompatible"):
		return value.ErrType
	default:
		return value.ErrSys
	}
}

// Package apperr defines the error taxonomy shared by the matching and
// exchange layers.  Every error crossing the API boundary is either one of
// these kinds or an unexpected infrastructure failure.  Handlers translate
// kinds into HTTP responses; see handler.writeError.
package apperr

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind classifies a recoverable failure.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation_error"
	KindDangling     Kind = "dangling_reference"
	KindInternal     Kind = "internal"
)

// ErrStale is returned by stores when a conditional update found the row in
// a different state than expected.  The engine turns it into InvalidState
// after re-reading the current status.
var ErrStale = eris.New("stale write: row no longer in expected state")

// Error is a classified failure.  Current is set for invalid_state errors
// and names the status that made the transition illegal.
type Error struct {
	Kind    Kind
	Message string
	Current string
	cause   error
}

func (e *Error) Error() string {
	if e.Current != "" {
		return fmt.Sprintf("%s: %s (current status: %s)", e.Kind, e.Message, e.Current)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, current, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: msg, Current: current, cause: eris.New(msg)}
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, "", format, args...)
}

// InvalidState reports a violated status precondition.  current is echoed
// to clients so the UI can explain why an action is disallowed.
func InvalidState(current string, format string, args ...any) error {
	return newError(KindInvalidState, current, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return newError(KindUnauthorized, "", format, args...)
}

func Validation(format string, args ...any) error {
	return newError(KindValidation, "", format, args...)
}

func Dangling(format string, args ...any) error {
	return newError(KindDangling, "", format, args...)
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CurrentStatus extracts the status carried by an invalid_state error.
func CurrentStatus(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Current
	}
	return ""
}

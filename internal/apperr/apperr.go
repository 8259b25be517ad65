// Package apperr defines the tagged error kinds the recommendation core
// recognizes, in place of ad-hoc exceptions or bare error strings.
package apperr

import (
	"github.com/cockroachdb/errors"
)

// Kind identifies which of the core's recognized failure categories an
// error belongs to. Callers should switch on Kind, never on error text.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindRoomFull           Kind = "ROOM_FULL"
	KindRoomAlreadyStarted Kind = "ROOM_ALREADY_STARTED"
	KindInvalidRoomAction  Kind = "INVALID_ROOM_ACTION"
	KindNoProfile          Kind = "NO_PROFILE"
	KindTransient          Kind = "TRANSIENT"
	KindFatal              Kind = "FATAL"
)

// Error is the tagged error type threaded through the core. Message is a
// free-form human string; Cause, when present, is preserved for logging via
// errors.Is/errors.As but never surfaced to clients.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func NotFound(msg string) *Error           { return new_(KindNotFound, msg, nil) }
func Conflict(msg string) *Error           { return new_(KindConflict, msg, nil) }
func RoomFull(msg string) *Error           { return new_(KindRoomFull, msg, nil) }
func RoomAlreadyStarted(msg string) *Error { return new_(KindRoomAlreadyStarted, msg, nil) }
func InvalidRoomAction(msg string) *Error  { return new_(KindInvalidRoomAction, msg, nil) }
func NoProfile(msg string) *Error          { return new_(KindNoProfile, msg, nil) }

func Transient(msg string, cause error) *Error {
	return new_(KindTransient, msg, cause)
}

func Fatal(msg string, cause error) *Error {
	return new_(KindFatal, msg, cause)
}

// Wrap attaches msg as context to cause, preserving the original stack via
// cockroachdb/errors. Use for plain Go errors that aren't one of the tagged
// kinds above (e.g. bubbling a driver error up through a store method).
func Wrap(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return errors.Wrap(cause, msg)
}

// Is reports whether err (or any error it wraps) is a tagged *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == k
	}
	return false
}

// KindOf extracts the Kind of a tagged error, or "" if err isn't one.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

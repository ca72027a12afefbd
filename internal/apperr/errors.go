// Package apperr defines the business failure taxonomy shared by the lifecycle,
// messaging and transport layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Callers branch on the kind, never on the message.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindDuplicateRequest  Kind = "DUPLICATE_REQUEST"
	KindRecipientNotFound Kind = "RECIPIENT_NOT_FOUND"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindUnauthenticated   Kind = "UNAUTHENTICATED"
	KindInternal          Kind = "INTERNAL"
)

// Error is a typed business failure.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotFound(msg string) error          { return New(KindNotFound, msg) }
func Forbidden(msg string) error         { return New(KindForbidden, msg) }
func InvalidTransition(msg string) error { return New(KindInvalidTransition, msg) }
func DuplicateRequest(msg string) error  { return New(KindDuplicateRequest, msg) }
func RecipientNotFound(msg string) error { return New(KindRecipientNotFound, msg) }
func InvalidArgument(msg string) error   { return New(KindInvalidArgument, msg) }
func Unauthenticated(msg string) error   { return New(KindUnauthenticated, msg) }

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(cause error) error {
	return Wrap(KindInternal, "internal error", cause)
}

// KindOf reports the kind of err. Errors that are not *Error are INTERNAL.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text that may be shown to a caller. Internal
// failures collapse to a generic message.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		return "internal server error"
	}
	return appErr.Message
}

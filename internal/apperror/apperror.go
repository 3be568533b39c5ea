package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound                  Kind = "NOT_FOUND"
	KindForbidden                 Kind = "FORBIDDEN"
	KindUnauthorized              Kind = "UNAUTHORIZED"
	KindInvalidStateTransition    Kind = "INVALID_STATE_TRANSITION"
	KindDuplicateActiveTicket     Kind = "DUPLICATE_ACTIVE_TICKET"
	KindNumberGenerationExhausted Kind = "NUMBER_GENERATION_EXHAUSTED"
	KindValidation                Kind = "VALIDATION_ERROR"
	KindInternal                  Kind = "INTERNAL_ERROR"
)

// Error is a typed domain failure. Two errors match under errors.Is when
// their kinds are equal, so the package-level sentinels below can be used
// as targets.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrForbidden                 = &Error{Kind: KindForbidden}
	ErrUnauthorized              = &Error{Kind: KindUnauthorized}
	ErrInvalidStateTransition    = &Error{Kind: KindInvalidStateTransition}
	ErrDuplicateActiveTicket     = &Error{Kind: KindDuplicateActiveTicket}
	ErrNumberGenerationExhausted = &Error{Kind: KindNumberGenerationExhausted}
	ErrValidation                = &Error{Kind: KindValidation}
	ErrInternal                  = &Error{Kind: KindInternal}
)

func NotFound(resource, ref string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, ref)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// InvalidTransition reports that operation is not allowed from the ticket's current status.
func InvalidTransition(current, operation string) *Error {
	return &Error{
		Kind:    KindInvalidStateTransition,
		Message: fmt.Sprintf("cannot %s a ticket in status %q", operation, current),
	}
}

func DuplicateActiveTicket(userID, queueID string) *Error {
	return &Error{
		Kind:    KindDuplicateActiveTicket,
		Message: fmt.Sprintf("user %s already has an active ticket in queue %s", userID, queueID),
	}
}

func NumberGenerationExhausted(attempts int) *Error {
	return &Error{
		Kind:    KindNumberGenerationExhausted,
		Message: fmt.Sprintf("could not generate a unique ticket number after %d attempts", attempts),
	}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind onto the status code returned at the HTTP boundary.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidStateTransition, KindDuplicateActiveTicket:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to clients. Internal errors
// never expose their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return "internal server error"
}

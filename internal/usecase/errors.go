package usecase

import (
	"errors"
	"fmt"

	"barangay-helpdesk/internal/domain"
)

type ErrorCode string

const (
	ErrorInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrorNotFound           ErrorCode = "NOT_FOUND"
	ErrorConflict           ErrorCode = "CONFLICT"
	ErrorConversationClosed ErrorCode = "CONVERSATION_CLOSED"
	ErrorForbidden          ErrorCode = "FORBIDDEN"
	ErrorInternal           ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// storeError classifies a persistence failure. Known domain conditions keep
// their own code; anything else is reported under reason.
func storeError(reason string, err error) *Error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return newError(ErrorNotFound, "conversation_not_found", err)
	case errors.Is(err, domain.ErrConversationClosed):
		return newError(ErrorConversationClosed, "conversation_done", err)
	case errors.Is(err, domain.ErrAlreadyAssigned):
		return newError(ErrorConflict, "already_assigned", err)
	case errors.Is(err, domain.ErrStaffNotFound):
		return newError(ErrorForbidden, "staff_not_found", err)
	default:
		return newError(ErrorInternal, reason, err)
	}
}

// CodeOf returns the code carried by err, or ErrorInternal.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}

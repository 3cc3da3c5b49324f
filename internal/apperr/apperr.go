// Package apperr defines the error taxonomy shared by services and handlers.
// Every failure a caller can act on carries a stable Kind and Code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindForbidden  Kind = "forbidden"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "unauthorized"
)

// Error is a classified, user-visible failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors of the same kind and code so wrapped copies of a
// sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrDuplicateEmail     = &Error{Kind: KindConflict, Code: "duplicate_email", Message: "email already registered"}
	ErrAlreadySigned      = &Error{Kind: KindConflict, Code: "already_signed", Message: "section already signed"}
	ErrAlreadyActive      = &Error{Kind: KindConflict, Code: "already_active", Message: "an execution of this SOP is already active"}
	ErrSectionNotReady    = &Error{Kind: KindConflict, Code: "section_not_ready", Message: "all required policies must be completed before signing"}
	ErrIncompleteSteps    = &Error{Kind: KindConflict, Code: "incomplete_steps", Message: "required steps are not completed"}
	ErrSectionNumberTaken = &Error{Kind: KindConflict, Code: "section_number_taken", Message: "section number is already used"}
	ErrObjectExists       = &Error{Kind: KindConflict, Code: "object_exists", Message: "object already uploaded"}
	ErrInvalidTransition  = &Error{Kind: KindConflict, Code: "invalid_transition", Message: "transition not allowed from current status"}
	ErrForbidden          = &Error{Kind: KindForbidden, Code: "forbidden", Message: "insufficient role"}
	ErrHandbookLocked     = &Error{Kind: KindForbidden, Code: "handbook_locked", Message: "handbook unlocks after approval and onboarding"}
	ErrSOPsLocked         = &Error{Kind: KindForbidden, Code: "sops_locked", Message: "SOPs unlock after the handbook is completed"}
	ErrAccountDisabled    = &Error{Kind: KindForbidden, Code: "account_disabled", Message: "account is rejected or inactive"}
	ErrInvalidCredentials = &Error{Kind: KindAuth, Code: "invalid_credentials", Message: "invalid credentials"}
	ErrInvalidToken       = &Error{Kind: KindAuth, Code: "invalid_token", Message: "invalid token"}
)

// Validation reports malformed or missing input.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity or one outside the caller's tenant.
func NotFound(entity string) error {
	return &Error{Kind: KindNotFound, Code: entity + "_not_found", Message: entity + " not found"}
}

// Transition wraps ErrInvalidTransition with the attempted move.
func Transition(from, to string) error {
	return &Error{Kind: KindConflict, Code: ErrInvalidTransition.Code, Message: fmt.Sprintf("cannot move from %s to %s", from, to)}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

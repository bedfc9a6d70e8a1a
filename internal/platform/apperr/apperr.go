// Package apperr defines the typed error kinds shared by every domain
// service and the echo error handler that renders them as the API's
// response envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and client handling.
type Kind string

const (
	KindValidation          Kind = "ValidationError"
	KindReference           Kind = "ReferenceError"
	KindNotAuthorized       Kind = "NotAuthorized"
	KindForbiddenTransition Kind = "ForbiddenTransition"
	KindInvariantViolation  Kind = "InvariantViolation"
	KindPricingRuleMissing  Kind = "PricingRuleMissing"
	KindInsufficientStock   Kind = "InsufficientStock"
	KindOverConsumption     Kind = "OverConsumption"
	KindOverlapRejected     Kind = "OverlapRejected"
	KindNoOpTransfer        Kind = "NoOpTransfer"
	KindUnexpected          Kind = "UnexpectedError"
)

// Error is a typed application error. Details carries per-field validation
// messages when Kind is ValidationError.
type Error struct {
	Kind    Kind
	Message string
	Details map[string][]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a typed error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates a typed error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a typed error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// Validation creates a ValidationError carrying per-field messages.
func Validation(msg string, details map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// KindOf extracts the Kind from err, or KindUnexpected when err is not a
// typed application error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindReference:
		return http.StatusNotFound
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindForbiddenTransition, KindInvariantViolation,
		KindInsufficientStock, KindOverConsumption,
		KindOverlapRejected, KindNoOpTransfer:
		return http.StatusConflict
	case KindPricingRuleMissing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Package apperror defines the error kinds every layer of the pantry service agrees on.
//
// Each AppError carries one sentinel (the KIND, checked with errors.Is) and an optional
// underlying cause. The HTTP layer maps kinds to status codes and only ever shows the
// Message to clients; the cause stays in the logs.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrExternalUnavailable = errors.New("external service unavailable")
	ErrParseFailure        = errors.New("parse failure")
	ErrStorageUnavailable  = errors.New("storage unavailable")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error, never shown to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause, so errors.Is works against either.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidInput is a ValidationFailed that keeps the decoding error as its cause.
func InvalidInput(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Cause:   cause,
	}
}

func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with this %s already exists", resource, field),
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// ExternalUnavailable reports that a dependency such as the product database
// or the vision API could not be reached or answered with a failure status.
func ExternalUnavailable(service string, cause error) *AppError {
	return &AppError{
		Err:     ErrExternalUnavailable,
		Message: fmt.Sprintf("%s is unavailable", service),
		Cause:   cause,
	}
}

func ParseFailure(what string, cause error) *AppError {
	return &AppError{
		Err:     ErrParseFailure,
		Message: fmt.Sprintf("failed to parse %s", what),
		Cause:   cause,
	}
}

func StorageUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorageUnavailable,
		Message: fmt.Sprintf("storage unavailable while %s", op),
		Cause:   cause,
	}
}

// Code returns the machine-readable name of err's kind, as used in the
// "error" field of API responses and in metric labels. Errors that are not
// AppErrors report "internal_error".
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrExternalUnavailable):
		return "external_unavailable"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	}
	return "internal_error"
}

package apperrors

import (
	"errors"
	"net/http"
)

// Error kinds. Every error returned to the HTTP layer should wrap one of
// these; anything else is treated as internal.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)

// CustomError carries a client-safe message alongside its kind.
type CustomError struct {
	Err     error
	Message string
}

func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

func NotFound(message string) error {
	return &CustomError{Err: ErrNotFound, Message: message}
}

func Forbidden(message string) error {
	return &CustomError{Err: ErrForbidden, Message: message}
}

func Unauthenticated(message string) error {
	return &CustomError{Err: ErrUnauthenticated, Message: message}
}

func Validation(message string) error {
	return &CustomError{Err: ErrValidation, Message: message}
}

func Conflict(message string) error {
	return &CustomError{Err: ErrConflict, Message: message}
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a client. Internal
// errors never leak their detail.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Server Error"
	}
	var custom *CustomError
	if errors.As(err, &custom) && custom.Message != "" {
		return custom.Message
	}
	return err.Error()
}

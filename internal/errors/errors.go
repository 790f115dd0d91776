package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for any password authentication failure:
	// unknown identifier, wrong password, or an account without a password.
	// Callers must never learn which of the three it was.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a token is malformed, mis-signed,
	// expired, revoked, or presented for the wrong purpose. Never distinguished further.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotFound is returned when a referenced user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidInput is returned when a request fails domain validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is the base error for uniqueness violations.
	ErrConflict = errors.New("already taken")
	// ErrInfrastructure is returned when the store or another backing service
	// fails or times out. Must never be interpreted as "user does not exist".
	ErrInfrastructure = errors.New("infrastructure error")
)

// ConflictError reports which unique field collided, for UX at registration.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " already taken"
}

// Unwrap makes errors.Is(err, ErrConflict) match ConflictError values.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Conflict creates a ConflictError for the given field.
func Conflict(field string) error {
	return &ConflictError{Field: field}
}

// Infra wraps a raw backing-service error into the infrastructure category.
func Infra(err error) error {
	return fmt.Errorf("%w: %v", ErrInfrastructure, err)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var conflict *ConflictError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidToken):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidToken.Error(), "INVALID_TOKEN")
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.As(err, &conflict):
		return NewHTTPError(http.StatusConflict, conflict.Error(), "CONFLICT_"+strings.ToUpper(conflict.Field))
	case errors.Is(err, ErrInfrastructure):
		return NewHTTPError(http.StatusServiceUnavailable, "service temporarily unavailable", "INFRASTRUCTURE_ERROR")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

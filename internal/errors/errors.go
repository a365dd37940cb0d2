package errors

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when email or password does not match.
	// It never says which of the two was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCurrentPasswordInvalid is returned when a password change omits or
	// mismatches the current password.
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
	// ErrTokenInvalid is returned for unknown, expired, consumed or mismatched
	// password reset tokens.
	ErrTokenInvalid = errors.New("this password reset token is invalid")
	// ErrConfiguration is returned when an operator-fixable setting is missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrPersistence is returned when a store is unavailable or fails.
	ErrPersistence = errors.New("persistence error")
	// ErrUnauthenticated is returned when an operation needs a signed-in principal.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUserNotFound is returned when a referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError carries every field-level violation of one request.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add records a violation for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	return e != nil && len(e.Fields[field]) > 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
	Email  string              `json:"email,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string][]string
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
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Only generic messages
// leave this function; causes wrapped into err stay server side.
func MapErrorToHTTP(err error) *HTTPError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpErr := NewHTTPError(http.StatusUnprocessableEntity, "the given data was invalid", "VALIDATION_FAILED")
		httpErr.Fields = verr.Fields
		return httpErr
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, "Invalid credentials", "INVALID_CREDENTIALS")
	case errors.Is(err, ErrCurrentPasswordInvalid):
		httpErr := NewHTTPError(http.StatusUnprocessableEntity, "Current password is incorrect.", "CURRENT_PASSWORD_INVALID")
		httpErr.Fields = map[string][]string{"current_password": {"Current password is incorrect."}}
		return httpErr
	case errors.Is(err, ErrTokenInvalid):
		return NewHTTPError(http.StatusBadRequest, ErrTokenInvalid.Error()+".", "TOKEN_INVALID")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, "unauthenticated", "UNAUTHENTICATED")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, "user not found", "USER_NOT_FOUND")
	default:
		return NewHTTPError(http.StatusInternalServerError, "Something went wrong", "INTERNAL_ERROR")
	}
}

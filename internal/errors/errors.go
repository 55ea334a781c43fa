// Package errors defines the service error taxonomy shared by services and the
// HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// Code is a machine-checkable error identifier.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInvalidID         Code = "INVALID_ID"
	CodeNotFound          Code = "NOT_FOUND"
	CodeCategoryNotFound  Code = "CATEGORY_NOT_FOUND"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeDuplicateKey      Code = "DUPLICATE_KEY"
	CodeConflict          Code = "CONFLICT"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidToken      Code = "INVALID_TOKEN"
	CodeForbidden         Code = "FORBIDDEN"
	CodeRateLimited       Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// ServiceError carries everything the HTTP layer needs to answer a failed
// request.
type ServiceError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches on Code so callers can write errors.Is(err, errors.NotFound("", "")).
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns the error with an additional detail entry.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports malformed input.
func Validation(format string, args ...any) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// InvalidID reports an identifier that is not a well-formed UUID.
func InvalidID(field, value string) *ServiceError {
	return newError(CodeInvalidID, http.StatusUnprocessableEntity, fmt.Sprintf("invalid %s", field), nil).
		WithDetails("field", field).
		WithDetails("value", value)
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *ServiceError {
	msg := resource + " not found"
	if id != "" {
		msg = fmt.Sprintf("%s %s not found", resource, id)
	}
	e := newError(CodeNotFound, http.StatusNotFound, msg, nil)
	if resource != "" {
		e.WithDetails("resource", resource)
	}
	return e
}

// CategoryNotFound reports every submitted category id that does not exist.
func CategoryNotFound(missing []string) *ServiceError {
	return newError(CodeCategoryNotFound, http.StatusNotFound,
		"categories not found: "+strings.Join(missing, ", "), nil).
		WithDetails("missing", append([]string(nil), missing...))
}

// InsufficientStock reports that the remaining stock cannot cover a request.
func InsufficientStock(bookID string, available int) *ServiceError {
	return newError(CodeInsufficientStock, http.StatusBadRequest,
		fmt.Sprintf("insufficient stock: %d copies left", available), nil).
		WithDetails("book_id", bookID).
		WithDetails("available", available)
}

// DuplicateKey reports a unique-constraint collision on field.
func DuplicateKey(field string, value any) *ServiceError {
	return newError(CodeDuplicateKey, http.StatusConflict,
		fmt.Sprintf("a resource with this %s already exists", field), nil).
		WithDetails("field", field).
		WithDetails("value", value)
}

// Conflict reports a request that clashes with the current resource state.
func Conflict(format string, args ...any) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, fmt.Sprintf(format, args...), nil)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "invalid or expired token", err)
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "access denied"
	}
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError unwraps err to a *ServiceError, or returns nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// Package errors defines the structured error taxonomy shared by every
// handler and upstream client. Each AppError carries a machine-readable
// code and an HTTP status so the response envelope never has to re-parse
// provider-specific shapes.
package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Code is the machine-readable error code surfaced in response envelopes.
type Code string

const (
	CodeInvalidJSON          Code = "INVALID_JSON"
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeMethodNotAllowed     Code = "METHOD_NOT_ALLOWED"
	CodeUnauthorized         Code = "UNAUTHORIZED"
	CodeInvalidSignature     Code = "INVALID_SIGNATURE"
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeRateLimit            Code = "RATE_LIMIT"
	CodeAPIError             Code = "API_ERROR"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// AppError represents a structured application error.
type AppError struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"-"`
	Cause   error                  `json:"-"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Code), e.Message}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status for the error, falling back to 500.
func (e *AppError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// WithDetail attaches a key to the error's detail map.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// InvalidJSON reports a malformed request body.
func InvalidJSON(cause error) *AppError {
	return &AppError{
		Code:    CodeInvalidJSON,
		Message: "request body is not valid JSON",
		Status:  http.StatusBadRequest,
		Cause:   cause,
	}
}

// Validation reports a schema mismatch. fieldErrors maps field names to
// human-readable messages and is surfaced in the envelope details.
func Validation(msg string, fieldErrors map[string]interface{}) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: msg,
		Status:  http.StatusBadRequest,
		Details: fieldErrors,
	}
}

// MethodNotAllowed reports a request with an unsupported HTTP method.
func MethodNotAllowed(method string) *AppError {
	return &AppError{
		Code:    CodeMethodNotAllowed,
		Message: fmt.Sprintf("method %s is not allowed", method),
		Status:  http.StatusMethodNotAllowed,
	}
}

// Unauthorized reports a failed shared-secret check.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: msg,
		Status:  http.StatusUnauthorized,
	}
}

// InvalidSignature reports a failed HMAC verification.
func InvalidSignature() *AppError {
	return &AppError{
		Code:    CodeInvalidSignature,
		Message: "webhook signature verification failed",
		Status:  http.StatusUnauthorized,
	}
}

// AuthenticationFailed reports that an upstream provider rejected our
// credentials (HTTP 401 from the provider).
func AuthenticationFailed(provider string) *AppError {
	return &AppError{
		Code:    CodeAuthenticationFailed,
		Message: fmt.Sprintf("%s rejected the configured credentials", provider),
		Status:  http.StatusInternalServerError,
	}
}

// RateLimited reports an upstream 429. retryAfter carries the provider's
// Retry-After header value when present.
func RateLimited(provider, retryAfter string) *AppError {
	e := &AppError{
		Code:    CodeRateLimit,
		Message: fmt.Sprintf("%s rate limit exceeded", provider),
		Status:  http.StatusTooManyRequests,
	}
	if retryAfter != "" {
		e.WithDetail("retryAfter", retryAfter)
	}
	return e
}

// APIError reports an uncategorized upstream failure.
func APIError(provider string, status int, body string) *AppError {
	e := &AppError{
		Code:    CodeAPIError,
		Message: fmt.Sprintf("%s request failed with status %d", provider, status),
		Status:  http.StatusInternalServerError,
	}
	e.WithDetail("providerStatus", status)
	if body != "" {
		e.WithDetail("providerDetails", body)
	}
	return e
}

// Internal reports an internal system error.
func Internal(msg string, cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: msg,
		Status:  http.StatusInternalServerError,
		Cause:   cause,
	}
}

// IsCode checks if an error is an AppError with the given code.
func IsCode(err error, code Code) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode returns the error code if err is an AppError, otherwise
// CodeInternal.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternal
}

// AsAppError converts any error to an AppError, wrapping unknown errors
// as internal failures.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal(err.Error(), err)
}

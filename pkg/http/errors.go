package http

import (
	"fmt"
	"net/http"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
		Params:  make(map[string]interface{}),
	}
}

// WithParams sets error params.
func (e *AppError) WithParams(params map[string]interface{}) *AppError {
	e.Params = params
	return e
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(message string) *AppError {
	return NewAppError("ERR_BAD_REQUEST", "", message, http.StatusBadRequest)
}

// BadRequestErrorf creates a 400 error with formatting.
func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return BadRequestError(fmt.Sprintf(format, a...))
}

// OrderRuleError creates a 400 error for a violated order business rule.
func OrderRuleError(rule, detail string) *AppError {
	return NewAppError("ERR_ORDER_RULE", "", detail, http.StatusBadRequest).
		WithParam("rule", rule)
}

// FieldError creates a 400 error tied to a specific request field.
func FieldError(field, message string) *AppError {
	return NewAppError("ERR_INVALID_FIELD", field, message, http.StatusBadRequest)
}

// SignatureFormatError creates a 401 error for malformed signatures.
func SignatureFormatError() *AppError {
	return NewAppError("ERR_SIGNATURE_FORMAT", "signature",
		"invalid signature format, expected hex string (0x...)", http.StatusUnauthorized)
}

// TimestampError creates a 401 error for stale or future timestamps.
func TimestampError(provided, current, maxAge int64) *AppError {
	return NewAppError("ERR_TIMESTAMP_RANGE", "timestamp",
		"request timestamp expired", http.StatusUnauthorized).
		WithParam("provided", provided).
		WithParam("current", current).
		WithParam("max_age", maxAge)
}

// UnauthorizedError creates a 401 error.
func UnauthorizedError(message string) *AppError {
	return NewAppError("ERR_UNAUTHORIZED", "", message, http.StatusUnauthorized)
}

// ForbiddenError creates a 403 error.
func ForbiddenError(message string) *AppError {
	return NewAppError("ERR_FORBIDDEN", "", message, http.StatusForbidden)
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", "", message, http.StatusNotFound)
}

// PayloadTooLargeError creates a 413 error.
func PayloadTooLargeError(maxSize int64) *AppError {
	return NewAppError("ERR_PAYLOAD_TOO_LARGE", "", "request body too large",
		http.StatusRequestEntityTooLarge).WithParam("max_size", maxSize)
}

// TooManyRequestsError creates a 429 error carrying retry guidance.
func TooManyRequestsError(limit int, window string, retryAfter int) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", "rate limit exceeded",
		http.StatusTooManyRequests).
		WithParam("limit", limit).
		WithParam("window", window).
		WithParam("retry_after", retryAfter)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError("ERR_INTERNAL", "", message, http.StatusInternalServerError)
}

// InternalErrorf creates a 500 error with formatting.
func InternalErrorf(format string, a ...interface{}) *AppError {
	return InternalError(fmt.Sprintf(format, a...))
}

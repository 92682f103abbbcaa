package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t == nil {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// IsRetryable reports whether err is, or wraps, a retryable AppError.
func IsRetryable(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Retryable
}

// --- Sequence errors ---

// EmptySequence creates an error for a sequence without qualifying elements.
func EmptySequence() *AppError {
	return New(ErrCodeEmptySequence, "no elements in sequence", http.StatusNotFound)
}

// OutOfRange creates an error for an element index past the end of a sequence.
func OutOfRange(index int) *AppError {
	return New(ErrCodeOutOfRange, fmt.Sprintf("no element at [%d]", index), http.StatusNotFound).
		WithDetail("index", index)
}

// MultipleElements creates an error for a sequence with more than one match.
func MultipleElements() *AppError {
	return New(ErrCodeMultipleElements, "found multiple elements in this sequence", http.StatusConflict)
}

// NoMatch creates an error for a predicate that matched nothing.
func NoMatch() *AppError {
	return New(ErrCodeNoMatch, "unable to locate element with the given criteria", http.StatusNotFound)
}

// InvalidCast creates an error for an element that is not of the target type.
func InvalidCast(value any, target string) *AppError {
	return New(ErrCodeInvalidCast, fmt.Sprintf("cannot cast %T to %s", value, target), http.StatusUnprocessableEntity).
		WithDetail("target", target)
}

// --- Storage errors ---

// StoreNotFound creates an error for an unknown store.
func StoreNotFound(store string) *AppError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("store %q does not exist", store), http.StatusNotFound).
		WithDetail("store", store)
}

// RecordNotFound creates an error for a missing record key.
func RecordNotFound(store, key string) *AppError {
	return New(ErrCodeRecordNotFound, fmt.Sprintf("no record %q in store %q", key, store), http.StatusNotFound).
		WithDetail("store", store).
		WithDetail("key", key)
}

// DuplicateKey creates an error for an insert whose key already exists.
func DuplicateKey(store, key string) *AppError {
	return New(ErrCodeDuplicateKey, fmt.Sprintf("key %q already exists in store %q", key, store), http.StatusConflict).
		WithDetail("store", store).
		WithDetail("key", key)
}

// Schema creates an error for a failed schema change.
func Schema(reason string) *AppError {
	return New(ErrCodeSchema, reason, http.StatusInternalServerError)
}

// Conflict creates a retryable error for a write that lost a race.
func Conflict(cause error) *AppError {
	return New(ErrCodeConflict, "the write conflicted with a concurrent transaction", http.StatusConflict).
		WithCause(cause)
}

// DatabaseError creates an error for a storage driver failure.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// Encoding creates an error for a record value that failed to encode or decode.
func Encoding(key string, cause error) *AppError {
	return New(ErrCodeEncoding, fmt.Sprintf("record %q has an invalid value", key), http.StatusUnprocessableEntity).
		WithDetail("key", key).
		WithCause(cause)
}

// --- Request errors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Busy creates a retryable error for a request refused at capacity.
func Busy(resource string) *AppError {
	return New(ErrCodeBusy, fmt.Sprintf("%s is at capacity, try again later", resource), http.StatusServiceUnavailable).
		WithDetail("resource", resource)
}

// Unauthorized creates a new AppError for a request without valid credentials.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication is required."
	}
	return New(ErrCodeUnauthorized, reason, http.StatusUnauthorized)
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

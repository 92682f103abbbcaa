package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Sequence errors raised by terminal query operators.
const (
	// ErrCodeEmptySequence indicates a sequence had no qualifying element.
	ErrCodeEmptySequence ErrorCode = "EMPTY_SEQUENCE"
	// ErrCodeOutOfRange indicates an element index past the end of a sequence.
	ErrCodeOutOfRange ErrorCode = "OUT_OF_RANGE"
	// ErrCodeMultipleElements indicates more than one element matched.
	ErrCodeMultipleElements ErrorCode = "MULTIPLE_ELEMENTS"
	// ErrCodeNoMatch indicates no element matched a predicate.
	ErrCodeNoMatch ErrorCode = "NO_MATCH"
	// ErrCodeInvalidCast indicates an element could not be converted.
	ErrCodeInvalidCast ErrorCode = "INVALID_CAST"
)

// Storage errors
const (
	ErrCodeStoreNotFound  ErrorCode = "STORE_NOT_FOUND"
	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeDuplicateKey   ErrorCode = "DUPLICATE_KEY"
	ErrCodeSchema         ErrorCode = "SCHEMA_ERROR"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeDatabaseError  ErrorCode = "DATABASE_ERROR"
	ErrCodeEncoding       ErrorCode = "ENCODING_ERROR"
)

// Request errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeBusy indicates the service is at capacity.
	ErrCodeBusy ErrorCode = "BUSY"
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConflict:      true,
	ErrCodeTimeout:       true,
	ErrCodeDatabaseError: true,
	ErrCodeBusy:          true,
	ErrCodeInternal:      false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

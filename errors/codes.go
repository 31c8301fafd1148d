package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Execution outcomes
const (
	// ErrCodeLaunchFailed indicates the tool could not be resolved or spawned.
	ErrCodeLaunchFailed ErrorCode = "LAUNCH_FAILED"
	// ErrCodeTimeout indicates the tool exceeded its wall-clock timeout.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeMemoryLimitExceeded indicates the tool was killed for exceeding its memory ceiling.
	ErrCodeMemoryLimitExceeded ErrorCode = "MEMORY_LIMIT_EXCEEDED"
	// ErrCodeCanceled indicates the caller canceled the invocation.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Availability errors
const (
	// ErrCodeServiceUnavailable indicates the service is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeRateLimited indicates the caller sent too many requests.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeTokenExpired indicates the authentication token has expired.
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	// ErrCodeInvalidToken indicates the authentication token is invalid.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Timeouts and memory breaches may succeed with a larger budget; a launch
// failure will not fix itself on retry.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:             true,
	ErrCodeMemoryLimitExceeded: true,
	ErrCodeServiceUnavailable:  true,
	ErrCodeRateLimited:         true,
	ErrCodeLaunchFailed:        false,
	ErrCodeCanceled:            false,
	ErrCodeInternal:            false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}

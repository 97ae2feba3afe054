package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Request & Language registry errors
// 12000-12999: Execution backend errors
// 13000-13999: Execution & Result interpretation errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10004
	ServiceUnavailable  ErrorCode = 10005
	Timeout             ErrorCode = 10006

	// Validation errors (10100-10199)
	ValidationFailed   ErrorCode = 10100
	InvalidFormat      ErrorCode = 10101
	RequiredFieldEmpty ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// ========== Request & Language Errors (11000-11999) ==========

	LanguageNotSupported ErrorCode = 11000
	InvalidTestConfig    ErrorCode = 11001
	MissingUpload        ErrorCode = 11002

	// ========== Execution Backend Errors (12000-12999) ==========

	BackendUnavailable ErrorCode = 12000
	LaunchRejected     ErrorCode = 12001
	BundleStageFailed  ErrorCode = 12002
	StatusReadFailed   ErrorCode = 12003

	// ========== Execution & Result Errors (13000-13999) ==========

	ExecutionTimedOut  ErrorCode = 13000
	ExecutionFailed    ErrorCode = 13001
	OutputParseFailure ErrorCode = 13002
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// Cache
	CacheError: "Cache operation failed",

	// Request & Language
	LanguageNotSupported: "Programming language not supported",
	InvalidTestConfig:    "Invalid test configuration",
	MissingUpload:        "Missing required files",

	// Execution backend
	BackendUnavailable: "Execution backend unavailable",
	LaunchRejected:     "Execution job rejected by backend",
	BundleStageFailed:  "Failed to stage test bundle",
	StatusReadFailed:   "Failed to read execution status",

	// Execution & Result
	ExecutionTimedOut:  "Test execution timed out",
	ExecutionFailed:    "Test execution failed",
	OutputParseFailure: "Failed to parse test results",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == BackendUnavailable:
		return 503
	case c >= 10100 && c < 10200: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	case c >= 11000 && c < 12000: // Request & language errors
		return 400
	default:
		return 500
	}
}

package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypePermission  ErrorType = "permission"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a Graph API error with type information.
// Code and Subcode carry the remote error object's numeric codes so
// callers can make per-call policy decisions.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Subcode int
}

func (e *Error) Error() string {
	if e.Subcode != 0 {
		return fmt.Sprintf("%s error (code %d, subcode %d): %s", e.Type, e.Code, e.Subcode, e.Message)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// rateLimitCodes is the set of Graph API error codes that signal
// application or user level throttling.
var rateLimitCodes = map[int]bool{
	4:   true, // application request limit reached
	17:  true, // user request limit reached
	32:  true, // page request limit reached
	613: true, // custom rate limit
}

// IsRateLimitCode reports whether a remote error code signals throttling.
func IsRateLimitCode(code int) bool {
	return rateLimitCodes[code]
}

// unavailableSubcodes are subcodes for capabilities a resource simply
// does not have (e.g. insights on an unsupported media type).
var unavailableSubcodes = map[int]bool{
	33:      true,
	2108006: true,
}

// IsUnavailable reports whether an error means the requested capability
// does not exist for the resource, as opposed to a real failure.
func IsUnavailable(err *Error) bool {
	if err == nil {
		return false
	}
	if err.Type == ErrorTypeUnavailable {
		return true
	}
	return unavailableSubcodes[err.Subcode]
}

// Classify maps an HTTP status and Graph error codes to an error type.
func Classify(httpStatus, code, subcode int) ErrorType {
	switch {
	case IsRateLimitCode(code) || httpStatus == 429:
		return ErrorTypeRateLimit
	case code == 190 || httpStatus == 401:
		return ErrorTypeAuth
	case code == 100 && unavailableSubcodes[subcode]:
		return ErrorTypeUnavailable
	case code == 10 || code == 200 || httpStatus == 403:
		return ErrorTypePermission
	case httpStatus == 404 || code == 803:
		return ErrorTypeNotFound
	case httpStatus >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500
	}
}

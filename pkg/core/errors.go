package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of a client error.
type ErrorType int

// Error type constants categorize errors for proper handling and retry decisions.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a network connectivity issue.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates the exchange rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid credentials or a bad signature.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates the exchange rejected the request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error at the exchange.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates the account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
	// ErrorTypeArgument indicates the caller supplied invalid or insufficient
	// parameters; the request never left the process.
	ErrorTypeArgument
	// ErrorTypeValidation indicates a trade-rule rejection before submission.
	ErrorTypeValidation
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INSUFFICIENT_FUNDS",
		"INVALID_ORDER",
		"ARGUMENT",
		"VALIDATION",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNoCredentials is returned when a signed call is attempted without credentials.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrNoAPIKey is returned when the key ring has no usable API key.
	ErrNoAPIKey = errors.New("no available API key")
	// ErrCircuitBreakerOpen is returned when the circuit breaker rejects a request.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrRulesUnavailable is returned when trading rules cannot be fetched for validation.
	ErrRulesUnavailable = errors.New("trading rules unavailable")
)

// ClientError is the uniform error value returned by every client operation.
// It carries the error category, the HTTP status when a response was received,
// and the exchange-specific numeric code when the payload included one.
type ClientError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response, zero if none.
	StatusCode int `json:"status_code"`
	// Code is the exchange-specific numeric error code, zero if absent.
	Code int `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`

	cause error
}

// Error implements the error interface for ClientError.
func (e *ClientError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s (%d/%d): %s", e.Type, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (%d): %s", e.Type, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

// Unwrap returns the underlying cause, if any.
func (e *ClientError) Unwrap() error {
	return e.cause
}

// NewServerError creates a ClientError for a request the exchange rejected.
// The code is the exchange-specific numeric error code; pass zero when the
// payload carried only a message.
func NewServerError(errorType ErrorType, statusCode, code int, message string) *ClientError {
	return &ClientError{
		Type:       errorType,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Timestamp:  time.Now(),
	}
}

// NewTransportError creates a ClientError for a connectivity or HTTP-layer
// failure. The original transport error is retained as the cause.
func NewTransportError(err error) *ClientError {
	return &ClientError{
		Type:      ErrorTypeNetwork,
		Message:   err.Error(),
		Timestamp: time.Now(),
		cause:     err,
	}
}

// NewArgumentError creates a ClientError for invalid caller-supplied parameters.
// These errors occur before any network call is made.
func NewArgumentError(format string, args ...any) *ClientError {
	return &ClientError{
		Type:      ErrorTypeArgument,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// NewValidationError creates a ClientError for a trade-rule rejection.
// These errors occur before the order is submitted.
func NewValidationError(format string, args ...any) *ClientError {
	return &ClientError{
		Type:      ErrorTypeValidation,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	}
}

// IsTransportError returns true if the error is a connectivity or timeout failure.
func IsTransportError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Type == ErrorTypeNetwork || e.Type == ErrorTypeTimeout
	}
	return false
}

// IsServerError returns true if the exchange rejected the request.
func IsServerError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		switch e.Type {
		case ErrorTypeRateLimit, ErrorTypeAuthentication, ErrorTypeBadRequest,
			ErrorTypeNotFound, ErrorTypeServerError, ErrorTypeInsufficientFunds,
			ErrorTypeInvalidOrder:
			return true
		}
	}
	return false
}

// IsArgumentError returns true if the caller supplied invalid parameters.
func IsArgumentError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Type == ErrorTypeArgument
	}
	return false
}

// IsValidationError returns true if the error is a trade-rule rejection.
func IsValidationError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Type == ErrorTypeValidation
	}
	return false
}

// IsRateLimitError returns true if the error is a rate limit violation.
func IsRateLimitError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Type == ErrorTypeRateLimit
	}
	return false
}

// IsAuthenticationError returns true if the error is an authentication failure.
func IsAuthenticationError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return e.Type == ErrorTypeAuthentication
	}
	return false
}

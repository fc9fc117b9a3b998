package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorType categorizes feed sync failures by how the poll loop reacts to them
type ErrorType string

const (
	// Retryable with exponential backoff
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeTimeout ErrorType = "timeout"
	ErrorTypeServer  ErrorType = "server"

	// Retried on the server's schedule, never counted as a failure
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// Not retryable without an external action
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeExhausted ErrorType = "exhausted"

	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a classified feed sync error
type Error struct {
	Type       ErrorType
	Message    string
	Cause      error
	Suggestion string
	StatusCode int
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a hint shown next to the error in the terminal
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// HasSuggestion returns true if the error has a suggestion
func (e *Error) HasSuggestion() bool {
	return e.Suggestion != ""
}

// New creates a classified error
func New(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NetworkError wraps a transport failure
func NetworkError(cause error) *Error {
	msg := "network error"
	if cause != nil {
		msg = cause.Error()
	}
	err := New(ErrorTypeNetwork, msg, cause)
	err.Suggestion = "Check your internet connection and the api.base_url setting."
	return err
}

// TimeoutError wraps a request that ran out of time
func TimeoutError(cause error) *Error {
	err := New(ErrorTypeTimeout, "Request timed out", cause)
	err.Suggestion = "The server is taking too long to respond. Polling will retry."
	return err
}

// ServerError is a non-2xx response that is worth retrying
func ServerError(statusCode int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("server error (%d)", statusCode)
	}
	err := New(ErrorTypeServer, message, nil)
	err.StatusCode = statusCode
	return err
}

// AuthRequired is returned when a request needs a logged-in user
func AuthRequired(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	err := New(ErrorTypeAuth, message, nil)
	err.StatusCode = 401
	err.Suggestion = "Run 'solfeed auth login' or refresh your credentials file."
	return err
}

// RateLimit is a 429 response; retryAfter is zero when the server gave no hint
func RateLimit(retryAfter time.Duration) *Error {
	err := New(ErrorTypeRateLimit, "Rate limit exceeded. Too many requests.", nil)
	err.StatusCode = 429
	err.RetryAfter = retryAfter
	if retryAfter > 0 {
		err.Suggestion = fmt.Sprintf("Waiting %s before polling again.", retryAfter)
	}
	return err
}

// Exhausted marks a loop that gave up; the message is the last failure verbatim
func Exhausted(last error) *Error {
	msg := "retries exhausted"
	if last != nil {
		msg = last.Error()
	}
	return New(ErrorTypeExhausted, msg, last)
}

// Classify converts any error into an *Error
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return TimeoutError(err)
		}
		return NetworkError(err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "authentication required"), strings.Contains(lower, "unauthorized"):
		e := AuthRequired(msg)
		e.Cause = err
		return e
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return NetworkError(err)
	case strings.Contains(msg, "timeout"):
		return TimeoutError(err)
	default:
		return New(ErrorTypeUnknown, msg, err)
	}
}

// Retryable reports whether backing off and trying again can help
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err).Type {
	case ErrorTypeAuth, ErrorTypeExhausted:
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// IsAuth reports whether err is an authentication failure
func IsAuth(err error) bool {
	return err != nil && Classify(err).Type == ErrorTypeAuth
}

// IsRateLimit reports whether err is a rate limit response
func IsRateLimit(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrorTypeRateLimit
}

// RetryAfter returns the server-advised wait carried by err, if any
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// Format returns a user-friendly error message
func Format(err error) string {
	if err == nil {
		return ""
	}

	e := Classify(err)
	var sb strings.Builder

	sb.WriteString("Error")
	if e.Type != ErrorTypeUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(e.Type))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if e.HasSuggestion() {
		sb.WriteString("Suggestion: ")
		sb.WriteString(e.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}

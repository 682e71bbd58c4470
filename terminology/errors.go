package terminology

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCategory classifies terminology server failures. Failures cross
// component boundaries as typed results, never as raw transport errors.
type ErrorCategory string

const (
	CategoryAuthFailure       ErrorCategory = "AUTH_FAILURE"
	CategoryInvalidCodeFormat ErrorCategory = "INVALID_CODE_FORMAT"
	CategoryCodeNotFound      ErrorCategory = "CODE_NOT_FOUND"
	CategoryNoMatches         ErrorCategory = "NO_MATCHES"
	CategoryRateLimited       ErrorCategory = "RATE_LIMITED"
	CategoryServerError       ErrorCategory = "SERVER_ERROR"
	CategoryConnectionError   ErrorCategory = "CONNECTION_ERROR"
	CategoryTimeout           ErrorCategory = "TIMEOUT"
	CategoryUnknown           ErrorCategory = "UNKNOWN"
)

// guidance maps each category to its user-facing message and suggestion.
var guidance = map[ErrorCategory][2]string{
	CategoryAuthFailure:       {"Authentication with the terminology server failed", "Check the configured client credentials"},
	CategoryInvalidCodeFormat: {"The code is not a valid SNOMED identifier", "Check the code for typos or stray characters"},
	CategoryCodeNotFound:      {"The code was not found on the terminology server", "The code may be retired or from a different release"},
	CategoryNoMatches:         {"The expansion matched no concepts", "A leaf concept has no children; this is not a failure"},
	CategoryRateLimited:       {"The terminology server is throttling requests", "Retry shortly or reduce the batch size"},
	CategoryServerError:       {"The terminology server reported an internal error", "Retry later; the server may be under maintenance"},
	CategoryConnectionError:   {"Could not reach the terminology server", "Check network connectivity and the configured base URL"},
	CategoryTimeout:           {"The request to the terminology server timed out", "Retry; large expansions can be slow"},
	CategoryUnknown:           {"An unexpected terminology server error occurred", "Check the logs for the underlying cause"},
}

// ServiceError is a categorized terminology failure.
type ServiceError struct {
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Suggestion string        `json:"suggestion"`
	Err        error         `json:"-"`
}

// NewServiceError builds a ServiceError with the category's standard
// message and suggestion.
func NewServiceError(category ErrorCategory, err error) *ServiceError {
	g := guidance[category]
	if g[0] == "" {
		g = guidance[CategoryUnknown]
	}
	return &ServiceError{Category: category, Message: g[0], Suggestion: g[1], Err: err}
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether the category is worth a bounded retry.
func (c ErrorCategory) Transient() bool {
	switch c {
	case CategoryTimeout, CategoryServerError, CategoryRateLimited:
		return true
	}
	return false
}

// CategorizeStatus maps an HTTP status to a category.
func CategorizeStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CategoryAuthFailure
	case status == http.StatusBadRequest:
		return CategoryInvalidCodeFormat
	case status == http.StatusNotFound:
		return CategoryCodeNotFound
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status >= 500:
		return CategoryServerError
	default:
		return CategoryUnknown
	}
}

// CategorizeTransport maps a transport-level error to a category.
func CategorizeTransport(err error) ErrorCategory {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	case err != nil:
		return CategoryConnectionError
	default:
		return CategoryUnknown
	}
}

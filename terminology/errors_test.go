package terminology

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCategory
	}{
		{http.StatusUnauthorized, CategoryAuthFailure},
		{http.StatusForbidden, CategoryAuthFailure},
		{http.StatusBadRequest, CategoryInvalidCodeFormat},
		{http.StatusNotFound, CategoryCodeNotFound},
		{http.StatusTooManyRequests, CategoryRateLimited},
		{http.StatusInternalServerError, CategoryServerError},
		{http.StatusBadGateway, CategoryServerError},
		{http.StatusTeapot, CategoryUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeStatus(tt.status), "status %d", tt.status)
	}
}

func TestCategorizeTransport(t *testing.T) {
	assert.Equal(t, CategoryTimeout, CategorizeTransport(context.DeadlineExceeded))
	assert.Equal(t, CategoryTimeout, CategorizeTransport(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, CategoryConnectionError, CategorizeTransport(fmt.Errorf("connection refused")))
}

func TestServiceErrorCarriesGuidance(t *testing.T) {
	err := NewServiceError(CategoryRateLimited, fmt.Errorf("429"))
	assert.Equal(t, CategoryRateLimited, err.Category)
	assert.NotEmpty(t, err.Message)
	assert.NotEmpty(t, err.Suggestion)
	assert.ErrorContains(t, err, "RATE_LIMITED")

	// Unknown categories fall back to the generic guidance.
	unknown := NewServiceError(ErrorCategory("BOGUS"), nil)
	assert.NotEmpty(t, unknown.Message)
}

func TestServiceErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := NewServiceError(CategoryServerError, cause)
	assert.ErrorIs(t, err, cause)

	var svcErr *ServiceError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &svcErr)
	assert.Equal(t, CategoryServerError, svcErr.Category)
}

func TestTransientCategories(t *testing.T) {
	assert.True(t, CategoryTimeout.Transient())
	assert.True(t, CategoryServerError.Transient())
	assert.True(t, CategoryRateLimited.Transient())
	assert.False(t, CategoryAuthFailure.Transient())
	assert.False(t, CategoryCodeNotFound.Transient())
	assert.False(t, CategoryInvalidCodeFormat.Transient())
	assert.False(t, CategoryNoMatches.Transient())
}

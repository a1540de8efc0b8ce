package agent

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrProviderUnavailable indicates the backend could not serve the request
	// (network failure, 5xx, rate limit). Retriable, then subject to fallback.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrRateLimited indicates the backend's rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
)

// SchemaError indicates the provider returned output that failed the
// required-fields schema. Handled exactly like unavailability: retried,
// then failed over, never surfaced as valid content.
type SchemaError struct {
	Provider string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed (provider %s): %s", e.Provider, e.Reason)
}

// APIError represents an error from a provider's API
type APIError struct {
	Message    string
	StatusCode int
	RetryAfter *time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider API error (status %d): %s", e.StatusCode, e.Message)
}

// IsSchemaError checks whether an error is a schema validation failure
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsRateLimitError checks whether an error indicates rate limiting
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsRetryable reports whether an error is worth retrying against the same
// provider before falling through to the next one in the chain. Both
// unavailability and malformed output qualify; context cancellation does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderUnavailable) || IsRateLimitError(err) || IsSchemaError(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// ExtractAPIError pulls API error details out of a wrapped provider error
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	errStr := err.Error()
	if strings.Contains(errStr, "429") {
		retryAfter := 60 * time.Second
		return &APIError{
			StatusCode: 429,
			Message:    errStr,
			RetryAfter: &retryAfter,
		}
	}

	return nil
}

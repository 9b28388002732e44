package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the provider. The status code
// determines whether the gateway may retry the call.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error %d: %s", e.Status, e.Body)
}

// RateLimited reports whether this error is a rate-limit rejection.
// The provider signals it with HTTP 429, but overloaded upstreams have
// been observed returning other statuses with a rate_limit error body,
// so the body is checked as well.
func (e *APIError) RateLimited() bool {
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "rate_limit") || strings.Contains(body, "rate limit")
}

// IsRateLimited reports whether err represents a retryable rate-limit
// failure from the provider.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RateLimited()
	}
	return false
}

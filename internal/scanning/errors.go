package scanning

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ProviderError is returned when the extraction provider fails: network, auth,
// quota or an unusable answer.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-200 answer from an HTTP based provider
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// IsQuotaError reports whether err means the provider quota is exhausted.
// Structured status codes are checked first; providers that only report quota
// problems in their message are matched by substring.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := err.Error()
	low := strings.ToLower(msg)
	return strings.Contains(msg, "429") ||
		strings.Contains(low, "quota") ||
		strings.Contains(low, "resource_exhausted")
}

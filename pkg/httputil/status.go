package httputil

import (
	"net/http"
	"strconv"
	"time"

	"github.com/matzehuels/blockworld/pkg/errors"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 10 * time.Second

// NewClient creates an HTTP client with the given timeout, or
// [DefaultTimeout] when timeout is zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// CheckStatus maps an HTTP status code to a coded error. 5xx maps to
// NETWORK_ERROR and 429 to RATE_LIMITED, both [Retryable]; other non-2xx
// codes are final.
func CheckStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, "status %d", code)
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return errors.New(errors.ErrCodeUnauthorized, "status %d", code)
	case code == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeRateLimited, "status %d", code)
	case code >= 500:
		return errors.New(errors.ErrCodeNetwork, "status %d", code)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "upstream rejected request: status %d", code)
	}
}

// CheckResponse is [CheckStatus] plus the Retry-After header of a 429, which
// [Retry] honors.
func CheckResponse(resp *http.Response) error {
	err := CheckStatus(resp.StatusCode)
	if err == nil || resp.StatusCode != http.StatusTooManyRequests {
		return err
	}
	secs, perr := strconv.Atoi(resp.Header.Get("Retry-After"))
	if perr != nil || secs <= 0 {
		return err
	}
	return errors.Wrap(errors.ErrCodeRateLimited, &errors.RateLimitedError{RetryAfter: secs}, "status %d", resp.StatusCode)
}

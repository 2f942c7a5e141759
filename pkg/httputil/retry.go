package httputil

import (
	"context"
	"errors"
	"net"
	"time"

	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
)

// Policy bounds the attempts made for one upstream call.
type Policy struct {
	Attempts int           // total tries, at least 1
	Delay    time.Duration // first backoff, doubled after each retry
	MaxDelay time.Duration // cap on a single wait; 0 means uncapped

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy is used by the block data client and the media loader when
// they are not configured otherwise.
var DefaultPolicy = Policy{Attempts: 3, Delay: time.Second, MaxDelay: 30 * time.Second}

// Retry calls fn until it succeeds, returns an error that is not
// [Retryable], or p.Attempts is exhausted. A rate-limited failure carrying a
// Retry-After hint waits at least that long. It returns the last error, or
// ctx.Err() if ctx ends while waiting.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Delay
	var lastErr error

	for i := range attempts {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) || i == attempts-1 {
			break
		}

		wait := max(delay, retryAfter(lastErr))
		if p.MaxDelay > 0 {
			wait = min(wait, p.MaxDelay)
		}
		if p.OnRetry != nil {
			p.OnRetry(i+1, lastErr, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			delay *= 2
		}
	}
	return lastErr
}

// Retryable reports whether err is a transient upstream failure: a coded
// NETWORK_ERROR, TIMEOUT or RATE_LIMITED error. Context errors are final.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch bwerrors.GetCode(err) {
	case bwerrors.ErrCodeNetwork, bwerrors.ErrCodeTimeout, bwerrors.ErrCodeRateLimited:
		return true
	}
	return false
}

// TransportError classifies a failed round trip. It returns ctx.Err() when
// the caller gave up, a TIMEOUT error for client timeouts and a
// NETWORK_ERROR otherwise.
func TransportError(ctx context.Context, err error, format string, args ...any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return bwerrors.Wrap(bwerrors.ErrCodeTimeout, err, format, args...)
	}
	return bwerrors.Wrap(bwerrors.ErrCodeNetwork, err, format, args...)
}

func retryAfter(err error) time.Duration {
	var rl *bwerrors.RateLimitedError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return time.Duration(rl.RetryAfter) * time.Second
	}
	return 0
}

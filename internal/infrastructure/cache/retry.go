package cache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultRetryCount     = 3
	DefaultRetryBaseDelay = time.Second
	DefaultRetryMaxDelay  = 30 * time.Second
)

// RetryPolicy controls how a failing fetch is retried. The delay before
// retry n (0-based) is min(BaseDelay*2^n, MaxDelay).
type RetryPolicy struct {
	Count       int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ShouldRetry func(err error) bool
}

// DefaultRetryPolicy retries transient failures up to 3 times with 1s..30s backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Count:       DefaultRetryCount,
		BaseDelay:   DefaultRetryBaseDelay,
		MaxDelay:    DefaultRetryMaxDelay,
		ShouldRetry: IsTransient,
	}
}

// NoRetry runs a fetch exactly once
func NoRetry() RetryPolicy {
	return RetryPolicy{Count: 0}
}

// IsTransient reports whether err is worth retrying: network failures,
// server errors and unclassified failures that did not come from a 4xx
// response (429 excepted). Validation, permission and not-found failures
// are final. Authentication failures (401) are final here too: the
// authenticated API layer below the cache has already refreshed the token
// and replayed the request once, so a 401 reaching the cache means the
// session is gone.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch domain.KindOf(err) {
	case domain.KindNetwork, domain.KindServer:
		return true
	case domain.KindUnknown:
		status := domain.StatusOf(err)
		return status == 0 || status == http.StatusTooManyRequests || status >= 500
	default:
		return false
	}
}

// Backoff returns a fresh backoff sequence for one fetch
func (p RetryPolicy) Backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultRetryMaxDelay
	}
	count := p.Count
	if count < 0 {
		count = 0
	}

	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(maxDelay, b)
	return retry.WithMaxRetries(uint64(count), b)
}

func (p RetryPolicy) shouldRetry(err error) bool {
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return IsTransient(err)
}

// Do runs fn until it succeeds, fails with a non-retryable error or the
// retry budget is spent. onRetry is called after each retryable failure.
func (p RetryPolicy) Do(ctx context.Context, fn Fetcher, onRetry func(attempt int, err error)) (any, error) {
	var (
		val     any
		attempt int
	)
	err := retry.Do(ctx, p.Backoff(), func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		if err != nil {
			if p.shouldRetry(err) {
				if onRetry != nil {
					onRetry(attempt, err)
				}
				return retry.RetryableError(err)
			}
			return err
		}
		val = v
		return nil
	})
	if err != nil {
		return nil, domain.AsError(err)
	}
	return val, nil
}

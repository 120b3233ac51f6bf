package cache

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryPolicy_Backoff(t *testing.T) {
	b := DefaultRetryPolicy().Backoff()

	for _, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		next, stop := b.Next()
		require.False(t, stop)
		assert.Equal(t, want, next)
	}
	_, stop := b.Next()
	assert.True(t, stop, "default policy allows exactly 3 retries")
}

func TestRetryPolicy_BackoffIsCapped(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Count = 7
	b := p.Backoff()

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		next, stop := b.Next()
		require.False(t, stop)
		assert.Equal(t, w*time.Second, next, "retry %d", i)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", domain.NewError(domain.KindNetwork, "down", nil), true},
		{"server", &domain.Error{Kind: domain.KindServer, HTTPStatus: 500}, true},
		{"unknown without status", errors.New("boom"), true},
		{"too many requests", &domain.Error{Kind: domain.KindUnknown, HTTPStatus: http.StatusTooManyRequests}, true},
		{"bad request", &domain.Error{Kind: domain.KindUnknown, HTTPStatus: http.StatusBadRequest}, false},
		{"validation", &domain.Error{Kind: domain.KindValidation, HTTPStatus: 422}, false},
		{"authentication", &domain.Error{Kind: domain.KindAuthentication, HTTPStatus: 401}, false},
		{"permission", &domain.Error{Kind: domain.KindPermission, HTTPStatus: 403}, false},
		{"not found", &domain.Error{Kind: domain.KindNotFound, HTTPStatus: 404}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryPolicy_Do_AttemptsAndDelays(t *testing.T) {
	p := RetryPolicy{Count: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: 50 * time.Millisecond}

	var (
		mu       sync.Mutex
		attempts []time.Time
	)
	_, err := p.Do(context.Background(), func(ctx context.Context) (any, error) {
		mu.Lock()
		attempts = append(attempts, time.Now())
		mu.Unlock()
		return nil, &domain.Error{Kind: domain.KindServer, HTTPStatus: 500}
	}, nil)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindServer))
	require.Len(t, attempts, p.Count+1)

	// min(base*2^n, max)
	want := []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		gap := attempts[i+1].Sub(attempts[i])
		assert.GreaterOrEqual(t, gap, w, "delay %d", i)
		assert.Less(t, gap, w+40*time.Millisecond, "delay %d", i)
	}
}

func TestRetryPolicy_Do_StopsOnFinalError(t *testing.T) {
	calls := 0
	_, err := DefaultRetryPolicy().Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		return nil, &domain.Error{Kind: domain.KindNotFound, HTTPStatus: 404}
	}, nil)

	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_Do_RecoversAfterTransientError(t *testing.T) {
	p := RetryPolicy{Count: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	retried := 0

	v, err := p.Do(context.Background(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, domain.NewError(domain.KindNetwork, "flaky", nil)
		}
		return "ok", nil
	}, func(attempt int, err error) { retried++ })

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retried)
}

func TestRetryPolicy_Do_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := DefaultRetryPolicy().Do(ctx, func(ctx context.Context) (any, error) {
		return nil, &domain.Error{Kind: domain.KindServer, HTTPStatus: 503}
	}, nil)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNetwork))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

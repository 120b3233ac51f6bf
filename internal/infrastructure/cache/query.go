package cache

import (
	"context"
	"fmt"

	"github.com/mycheff/engine/internal/domain"
)

// Query is the typed form of QueryCache.Fetch
func Query[T any](ctx context.Context, c *QueryCache, key QueryKey, fetch func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	v, err := c.Fetch(ctx, key, wrap(fetch), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](key, v)
}

// Refresh is the typed form of QueryCache.Refetch
func Refresh[T any](ctx context.Context, c *QueryCache, key QueryKey, fetch func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	v, err := c.Refetch(ctx, key, wrap(fetch), opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](key, v)
}

// Get returns the typed cached value for key, fresh or stale
func Get[T any](c *QueryCache, key QueryKey) (T, bool) {
	v, ok := c.GetData(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, err := as[T](key, v)
	return t, err == nil
}

func wrap[T any](fetch func(ctx context.Context) (T, error)) Fetcher {
	return func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
}

func as[T any](key QueryKey, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, domain.NewError(domain.KindValidation,
			fmt.Sprintf("cached value for %s has type %T, want %T", key, v, zero), nil)
	}
	return t, nil
}

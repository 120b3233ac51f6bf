package cache

import (
	"context"
	"fmt"

	"github.com/mycheff/engine/internal/domain"
)

// PageFetcher loads one page of an infinite query. Pages are 1-based.
type PageFetcher[T any] func(ctx context.Context, page int) (domain.Page[T], error)

// InfiniteQuery returns the pages cached under key. A missing or stale
// entry is loaded again starting from page 1.
func InfiniteQuery[T any](ctx context.Context, c *QueryCache, key QueryKey, fetch PageFetcher[T], opts ...Option) (domain.InfiniteData[T], error) {
	return Query(ctx, c, key, firstPage(fetch), opts...)
}

// RefreshInfinite reloads page 1 and drops every later page
func RefreshInfinite[T any](ctx context.Context, c *QueryCache, key QueryKey, fetch PageFetcher[T], opts ...Option) (domain.InfiniteData[T], error) {
	return Refresh(ctx, c, key, firstPage(fetch), opts...)
}

// LoadMore appends the page after the last loaded one. It loads page 1 when
// nothing is cached and fails with ErrNoMorePages when the last page has
// already been loaded. Concurrent calls for the same key share one request.
func LoadMore[T any](ctx context.Context, c *QueryCache, key QueryKey, fetch PageFetcher[T], opts ...Option) (domain.InfiniteData[T], error) {
	current, ok := Get[domain.InfiniteData[T]](c, key)
	if !ok || len(current.Pages) == 0 {
		return InfiniteQuery(ctx, c, key, fetch, opts...)
	}
	if !current.HasNext() {
		return current, domain.ErrNoMorePages
	}

	return Refresh(ctx, c, key, func(ctx context.Context) (domain.InfiniteData[T], error) {
		// re-read inside the fetch so joined callers all advance by one page
		data, _ := Get[domain.InfiniteData[T]](c, key)
		last, ok := data.LastCursor()
		if !ok {
			return firstPage(fetch)(ctx)
		}
		if !last.HasNext {
			return data, nil
		}

		next := last.Page + 1
		page, err := fetch(ctx, next)
		if err != nil {
			return domain.InfiniteData[T]{}, err
		}
		if page.Cursor.Page != next {
			return domain.InfiniteData[T]{}, domain.NewError(domain.KindValidation,
				fmt.Sprintf("expected page %d, got page %d", next, page.Cursor.Page), nil)
		}

		pages := make([]domain.Page[T], 0, len(data.Pages)+1)
		pages = append(pages, data.Pages...)
		pages = append(pages, page)
		return domain.InfiniteData[T]{Pages: pages}, nil
	}, opts...)
}

func firstPage[T any](fetch PageFetcher[T]) func(ctx context.Context) (domain.InfiniteData[T], error) {
	return func(ctx context.Context) (domain.InfiniteData[T], error) {
		page, err := fetch(ctx, 1)
		if err != nil {
			return domain.InfiniteData[T]{}, err
		}
		return domain.InfiniteData[T]{Pages: []domain.Page[T]{page}}, nil
	}
}

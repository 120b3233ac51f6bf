package usecase

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// FavoritesService manages the user's favorite recipes
type FavoritesService struct {
	api       *API
	cache     *cache.QueryCache
	mutations *MutationExecutor
	language  domain.LanguageSource
	pageSize  int
	logger    *zap.Logger
}

// NewFavoritesService creates a favorites service
func NewFavoritesService(api *API, c *cache.QueryCache, mutations *MutationExecutor, language domain.LanguageSource, pageSize int, logger *zap.Logger) *FavoritesService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FavoritesService{
		api:       api,
		cache:     c,
		mutations: mutations,
		language:  language,
		pageSize:  pageSize,
		logger:    logger.Named("favorites"),
	}
}

// List returns the loaded pages of favorites
func (s *FavoritesService) List(ctx context.Context) (domain.InfiniteData[domain.Recipe], error) {
	return cache.InfiniteQuery(ctx, s.cache, favoriteListKey(), s.pages)
}

// LoadMore appends the next page of favorites
func (s *FavoritesService) LoadMore(ctx context.Context) (domain.InfiniteData[domain.Recipe], error) {
	return cache.LoadMore(ctx, s.cache, favoriteListKey(), s.pages)
}

// Refresh reloads favorites from the first page
func (s *FavoritesService) Refresh(ctx context.Context) (domain.InfiniteData[domain.Recipe], error) {
	return cache.RefreshInfinite(ctx, s.cache, favoriteListKey(), s.pages)
}

func (s *FavoritesService) pages(ctx context.Context, page int) (domain.Page[domain.Recipe], error) {
	q := url.Values{
		"page":  []string{strconv.Itoa(page)},
		"limit": []string{strconv.Itoa(s.pageSize)},
	}
	p, err := getPage[domain.Recipe](ctx, s.api, "/users/me/favorites", q)
	if err != nil {
		return p, err
	}
	backend.LocalizeRecipes(p.Items, s.language.Language())
	return p, nil
}

// IsFavorite reports whether recipeID is among the user's favorites
func (s *FavoritesService) IsFavorite(ctx context.Context, recipeID string) (bool, error) {
	return cache.Query(ctx, s.cache, favoriteCheckKey(recipeID), func(ctx context.Context) (bool, error) {
		res, err := getData[struct {
			IsFavorite bool `json:"isFavorite"`
		}](ctx, s.api, "/user/favorites/"+url.PathEscape(recipeID)+"/check", nil)
		return res.IsFavorite, err
	})
}

// Add marks recipeID as favorite. The check flag flips immediately and is
// rolled back if the backend rejects the change.
func (s *FavoritesService) Add(ctx context.Context, recipeID string) error {
	_, err := Mutate(ctx, s.mutations, func(ctx context.Context) (struct{}, error) {
		_, err := s.api.Do(ctx, backend.Request{Method: http.MethodPost, Path: "/users/me/favorites/" + url.PathEscape(recipeID)})
		return struct{}{}, err
	}, MutateOptions[struct{}]{
		Optimistic:  []OptimisticUpdate{setFavoriteFlag(recipeID, true)},
		Invalidates: []cache.QueryKey{favoriteListKey()},
		OnSuccess: func(c *cache.QueryCache, _ struct{}) {
			c.SetData(favoriteCheckKey(recipeID), true)
		},
	})
	return err
}

// Remove drops recipeID from favorites, hiding it from the cached list
// until the backend confirms
func (s *FavoritesService) Remove(ctx context.Context, recipeID string) error {
	_, err := Mutate(ctx, s.mutations, func(ctx context.Context) (struct{}, error) {
		_, err := s.api.Do(ctx, backend.Request{Method: http.MethodDelete, Path: "/users/me/favorites/" + url.PathEscape(recipeID)})
		return struct{}{}, err
	}, MutateOptions[struct{}]{
		Optimistic: []OptimisticUpdate{
			setFavoriteFlag(recipeID, false),
			removeFromFavoriteList(recipeID),
		},
		Invalidates: []cache.QueryKey{favoriteListKey()},
		OnSuccess: func(c *cache.QueryCache, _ struct{}) {
			c.SetData(favoriteCheckKey(recipeID), false)
		},
	})
	return err
}

// RemoveMany drops several favorites in one call and returns how many the
// backend removed
func (s *FavoritesService) RemoveMany(ctx context.Context, recipeIDs []string) (int, error) {
	if len(recipeIDs) == 0 {
		return 0, nil
	}

	updates := make([]OptimisticUpdate, 0, len(recipeIDs)+1)
	for _, id := range recipeIDs {
		updates = append(updates, setFavoriteFlag(id, false))
	}
	updates = append(updates, removeFromFavoriteList(recipeIDs...))

	type bulkResult struct {
		Removed int `json:"removed"`
	}
	res, err := Mutate(ctx, s.mutations, func(ctx context.Context) (bulkResult, error) {
		return sendData[bulkResult](ctx, s.api, http.MethodPost, "/users/me/favorites/bulk-delete",
			map[string]any{"recipeIds": recipeIDs})
	}, MutateOptions[bulkResult]{
		Optimistic:  updates,
		Invalidates: []cache.QueryKey{favoriteKeys},
	})
	return res.Removed, err
}

func setFavoriteFlag(recipeID string, favorite bool) OptimisticUpdate {
	return OptimisticUpdate{
		Key:    favoriteCheckKey(recipeID),
		Update: func(any, bool) any { return favorite },
	}
}

// removeFromFavoriteList filters recipeIDs out of every cached page. Page
// cursors are left alone; the list is refetched once the mutation settles.
func removeFromFavoriteList(recipeIDs ...string) OptimisticUpdate {
	drop := make(map[string]bool, len(recipeIDs))
	for _, id := range recipeIDs {
		drop[id] = true
	}
	return OptimisticUpdate{
		Key: favoriteListKey(),
		Update: func(prev any, ok bool) any {
			data, isList := prev.(domain.InfiniteData[domain.Recipe])
			if !ok || !isList {
				return nil
			}
			pages := make([]domain.Page[domain.Recipe], len(data.Pages))
			for i, p := range data.Pages {
				items := make([]domain.Recipe, 0, len(p.Items))
				for _, r := range p.Items {
					if !drop[r.ID] {
						items = append(items, r)
					}
				}
				pages[i] = domain.Page[domain.Recipe]{Items: items, Cursor: p.Cursor}
			}
			return domain.InfiniteData[domain.Recipe]{Pages: pages}
		},
	}
}

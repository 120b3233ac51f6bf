package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"go.uber.org/zap"
)

const (
	DefaultPageSize      = 20
	DefaultMatchPoolSize = 100
)

// RecipeServiceConfig holds configuration for the recipe service
type RecipeServiceConfig struct {
	PageSize      int
	MatchPoolSize int
}

// RecipeService serves recipe reads through the query cache
type RecipeService struct {
	api           *API
	cache         *cache.QueryCache
	mutations     *MutationExecutor
	language      domain.LanguageSource
	queries       *QueryPreprocessor
	pageSize      int
	matchPoolSize int
	logger        *zap.Logger
}

// NewRecipeService creates a new recipe service with dependencies
func NewRecipeService(
	api *API,
	c *cache.QueryCache,
	mutations *MutationExecutor,
	language domain.LanguageSource,
	queries *QueryPreprocessor,
	config RecipeServiceConfig,
	logger *zap.Logger,
) *RecipeService {
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	poolSize := config.MatchPoolSize
	if poolSize <= 0 {
		poolSize = DefaultMatchPoolSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RecipeService{
		api:           api,
		cache:         c,
		mutations:     mutations,
		language:      language,
		queries:       queries,
		pageSize:      pageSize,
		matchPoolSize: poolSize,
		logger:        logger.Named("recipes"),
	}
}

// List returns the loaded pages of the recipe list for filters
func (s *RecipeService) List(ctx context.Context, filters domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error) {
	return cache.InfiniteQuery(ctx, s.cache, recipeListKey(filters), s.listPages(filters))
}

// LoadMore appends the next page of the recipe list
func (s *RecipeService) LoadMore(ctx context.Context, filters domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error) {
	return cache.LoadMore(ctx, s.cache, recipeListKey(filters), s.listPages(filters))
}

// Refresh reloads the recipe list from its first page
func (s *RecipeService) Refresh(ctx context.Context, filters domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error) {
	return cache.RefreshInfinite(ctx, s.cache, recipeListKey(filters), s.listPages(filters))
}

func (s *RecipeService) listPages(filters domain.RecipeFilters) cache.PageFetcher[domain.Recipe] {
	return func(ctx context.Context, page int) (domain.Page[domain.Recipe], error) {
		q := s.pageQuery(page, s.pageSize)
		addFilters(q, filters)
		return s.recipePage(ctx, "/recipes", q)
	}
}

// addFilters encodes filters the way the backend list endpoint expects
func addFilters(q url.Values, f domain.RecipeFilters) {
	for _, id := range f.CategoryIDs {
		q.Add("categoryIds", id)
	}
	if f.MaxCookTime > 0 {
		q.Set("maxCookingTime", strconv.Itoa(f.MaxCookTime))
	}
	if f.Difficulty > 0 {
		q.Set("difficultyLevel", strconv.Itoa(f.Difficulty))
	}
	if f.PremiumOnly {
		q.Set("isPremium", "true")
	}
	if f.FeaturedOnly {
		q.Set("isFeatured", "true")
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
}

func (s *RecipeService) pageQuery(page, limit int) url.Values {
	return url.Values{
		"page":  []string{strconv.Itoa(page)},
		"limit": []string{strconv.Itoa(limit)},
	}
}

func (s *RecipeService) recipePage(ctx context.Context, path string, q url.Values) (domain.Page[domain.Recipe], error) {
	page, err := getPage[domain.Recipe](ctx, s.api, path, q)
	if err != nil {
		return page, err
	}
	backend.LocalizeRecipes(page.Items, s.language.Language())
	return page, nil
}

// Featured returns the first page of featured recipes
func (s *RecipeService) Featured(ctx context.Context) ([]domain.Recipe, error) {
	return cache.Query(ctx, s.cache, featuredKey(), func(ctx context.Context) ([]domain.Recipe, error) {
		page, err := s.recipePage(ctx, "/recipes/featured", s.pageQuery(1, s.pageSize))
		return page.Items, err
	})
}

// Popular returns the first page of popular recipes. The backend has no
// ranking endpoint yet so this is the default list order.
func (s *RecipeService) Popular(ctx context.Context) ([]domain.Recipe, error) {
	return cache.Query(ctx, s.cache, popularKey(), func(ctx context.Context) ([]domain.Recipe, error) {
		page, err := s.recipePage(ctx, "/recipes", s.pageQuery(1, s.pageSize))
		return page.Items, err
	})
}

// Detail returns one recipe
func (s *RecipeService) Detail(ctx context.Context, id string) (domain.Recipe, error) {
	if id == "" {
		return domain.Recipe{}, domain.NewError(domain.KindValidation, "recipe id is required", nil)
	}
	return cache.Query(ctx, s.cache, recipeDetailKey(id), func(ctx context.Context) (domain.Recipe, error) {
		recipe, err := getData[domain.Recipe](ctx, s.api, "/recipes/"+url.PathEscape(id), nil)
		if err != nil {
			return recipe, err
		}
		if recipe.ID == "" {
			return domain.Recipe{}, domain.NewError(domain.KindValidation, "invalid recipe data: missing id", domain.ErrMalformedEnvelope)
		}
		backend.LocalizeRecipe(&recipe, s.language.Language())
		return recipe, nil
	})
}

// Search returns the first page of recipes matching query
func (s *RecipeService) Search(ctx context.Context, query string) (domain.Page[domain.Recipe], error) {
	cleaned, err := s.queries.Validate(query)
	if err != nil {
		return domain.Page[domain.Recipe]{}, err
	}
	return cache.Query(ctx, s.cache, recipeSearchKey(s.queries.CacheKey(cleaned)), func(ctx context.Context) (domain.Page[domain.Recipe], error) {
		q := s.pageQuery(1, s.pageSize)
		q.Set("q", cleaned)
		return s.recipePage(ctx, "/recipes/search", q)
	})
}

// SearchFunc adapts Search for a SearchController. The controller's
// context is passed down so a superseded search aborts its request.
func (s *RecipeService) SearchFunc() SearchFunc[[]domain.Recipe] {
	return func(ctx context.Context, query string) ([]domain.Recipe, error) {
		page, err := s.Search(ctx, query)
		return page.Items, err
	}
}

// Categories returns all recipe categories
func (s *RecipeService) Categories(ctx context.Context) ([]domain.Category, error) {
	return cache.Query(ctx, s.cache, categoryKeys, func(ctx context.Context) ([]domain.Category, error) {
		return getData[[]domain.Category](ctx, s.api, "/recipes/categories", nil)
	})
}

// CategoryRecipes returns the loaded pages of one category's recipes
func (s *RecipeService) CategoryRecipes(ctx context.Context, categoryID string) (domain.InfiniteData[domain.Recipe], error) {
	return cache.InfiniteQuery(ctx, s.cache, categoryRecipesKey(categoryID), func(ctx context.Context, page int) (domain.Page[domain.Recipe], error) {
		return s.recipePage(ctx, "/categories/"+url.PathEscape(categoryID)+"/recipes", s.pageQuery(page, s.pageSize))
	})
}

// Rate submits a rating and marks the recipe detail stale
func (s *RecipeService) Rate(ctx context.Context, recipeID string, rating int, comment string) (domain.RecipeRating, error) {
	if rating < 1 || rating > 5 {
		return domain.RecipeRating{}, domain.NewError(domain.KindValidation, fmt.Sprintf("rating must be between 1 and 5, got %d", rating), nil)
	}
	body := map[string]any{"rating": rating}
	if comment != "" {
		body["comment"] = comment
	}
	return Mutate(ctx, s.mutations, func(ctx context.Context) (domain.RecipeRating, error) {
		return sendData[domain.RecipeRating](ctx, s.api, http.MethodPost, "/recipes/"+url.PathEscape(recipeID)+"/ratings", body)
	}, MutateOptions[domain.RecipeRating]{
		Invalidates: []cache.QueryKey{recipeDetailKey(recipeID)},
	})
}

// MatchByIngredients ranks the recipe pool against the given ingredient
// names locally
func (s *RecipeService) MatchByIngredients(ctx context.Context, names []string, filter MatchFilter) ([]domain.MatchResult, error) {
	pool, err := cache.Query(ctx, s.cache, matchPoolKey(), func(ctx context.Context) ([]domain.Recipe, error) {
		page, err := s.recipePage(ctx, "/recipes", s.pageQuery(1, s.matchPoolSize))
		return page.Items, err
	})
	if err != nil {
		return nil, err
	}

	results := MatchRecipesWithFilter(pool, names, filter)
	s.logger.Debug("matched recipes",
		zap.Int("pool", len(pool)),
		zap.Int("ingredients", len(names)),
		zap.Int("matches", len(results)),
	)
	return results, nil
}

// MatchOnServer asks the backend to rank recipes against the user's
// pantry. Repeat calls with the same parameters are served from the cache.
func (s *RecipeService) MatchOnServer(ctx context.Context, params domain.IngredientMatchParams) (domain.Page[domain.ServerMatch], error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Limit <= 0 {
		params.Limit = s.pageSize
	}
	if params.LanguageCode == "" {
		params.LanguageCode = s.language.Language()
	}

	return cache.Query(ctx, s.cache, byIngredientsKey(params), func(ctx context.Context) (domain.Page[domain.ServerMatch], error) {
		resp, err := s.api.Do(ctx, backend.Request{Method: http.MethodPost, Path: "/recipes/by-ingredients", Body: params})
		if err != nil {
			return domain.Page[domain.ServerMatch]{}, err
		}
		page, err := decodePage[domain.ServerMatch](resp)
		if err != nil {
			return page, err
		}
		for i := range page.Items {
			backend.LocalizeRecipe(&page.Items[i].Recipe, params.LanguageCode)
		}
		return page, nil
	})
}

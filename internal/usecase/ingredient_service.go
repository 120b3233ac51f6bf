package usecase

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// DefaultIngredientLimit caps ingredient autocomplete results
const DefaultIngredientLimit = 10

// IngredientServiceConfig holds configuration for the ingredient service
type IngredientServiceConfig struct {
	SearchLimit int
	Debounce    time.Duration
}

// IngredientService serves the ingredient catalogue and the user's pantry
type IngredientService struct {
	api         *API
	cache       *cache.QueryCache
	mutations   *MutationExecutor
	language    domain.LanguageSource
	queries     *QueryPreprocessor
	searchLimit int
	debounce    time.Duration
	logger      *zap.Logger
}

// NewIngredientService creates an ingredient service
func NewIngredientService(
	api *API,
	c *cache.QueryCache,
	mutations *MutationExecutor,
	language domain.LanguageSource,
	queries *QueryPreprocessor,
	config IngredientServiceConfig,
	logger *zap.Logger,
) *IngredientService {
	limit := config.SearchLimit
	if limit <= 0 {
		limit = DefaultIngredientLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngredientService{
		api:         api,
		cache:       c,
		mutations:   mutations,
		language:    language,
		queries:     queries,
		searchLimit: limit,
		debounce:    config.Debounce,
		logger:      logger.Named("ingredients"),
	}
}

// Search returns catalogue ingredients matching text. Text shorter than
// the minimum query length yields no results and no request.
func (s *IngredientService) Search(ctx context.Context, text string) ([]domain.Ingredient, error) {
	if s.queries.TooShort(text) {
		return []domain.Ingredient{}, nil
	}
	cleaned, err := s.queries.Validate(text)
	if err != nil {
		return nil, err
	}

	return cache.Query(ctx, s.cache, ingredientSearchKey(s.queries.CacheKey(cleaned)), func(ctx context.Context) ([]domain.Ingredient, error) {
		q := url.Values{
			"q":     []string{cleaned},
			"limit": []string{strconv.Itoa(s.searchLimit)},
		}
		ings, err := getData[[]domain.Ingredient](ctx, s.api, "/ingredients/search", q)
		if err != nil {
			return nil, err
		}
		backend.LocalizeIngredients(ings, s.language.Language())
		return ings, nil
	})
}

// NewSearchController returns a debounced autocomplete controller over Search
func (s *IngredientService) NewSearchController(onResult func(SearchResult[[]domain.Ingredient])) *SearchController[[]domain.Ingredient] {
	return NewSearchController(s.Search, SearchConfig{
		Debounce:     s.debounce,
		Preprocessor: s.queries,
	}, onResult, s.logger)
}

// All returns the whole ingredient catalogue
func (s *IngredientService) All(ctx context.Context) ([]domain.Ingredient, error) {
	return cache.Query(ctx, s.cache, allIngredientsKey(), func(ctx context.Context) ([]domain.Ingredient, error) {
		ings, err := getData[[]domain.Ingredient](ctx, s.api, "/ingredients", nil)
		if err != nil {
			return nil, err
		}
		backend.LocalizeIngredients(ings, s.language.Language())
		return ings, nil
	})
}

// Pantry returns the user's ingredients
func (s *IngredientService) Pantry(ctx context.Context) ([]domain.UserIngredient, error) {
	return cache.Query(ctx, s.cache, userIngredientsKey(), func(ctx context.Context) ([]domain.UserIngredient, error) {
		items, err := getData[[]domain.UserIngredient](ctx, s.api, "/user/ingredients", nil)
		if err != nil {
			return nil, err
		}
		lang := s.language.Language()
		for i := range items {
			if ing := items[i].Ingredient; ing != nil {
				backend.LocalizeIngredient(ing, lang)
				if items[i].Name == "" {
					items[i].Name = ing.Name
				}
			}
		}
		return items, nil
	})
}

// PantryNames returns the names of the user's ingredients
func (s *IngredientService) PantryNames(ctx context.Context) ([]string, error) {
	items, err := s.Pantry(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.Name != "" {
			names = append(names, it.Name)
		}
	}
	return names, nil
}

// AddToPantry adds an ingredient to the pantry, showing it immediately
func (s *IngredientService) AddToPantry(ctx context.Context, item domain.UserIngredient) (domain.UserIngredient, error) {
	if item.IngredientID == "" {
		return domain.UserIngredient{}, domain.NewError(domain.KindValidation, "ingredient id is required", nil)
	}
	body := map[string]any{"ingredientId": item.IngredientID, "quantity": item.Quantity, "unit": item.Unit}

	return Mutate(ctx, s.mutations, func(ctx context.Context) (domain.UserIngredient, error) {
		return sendData[domain.UserIngredient](ctx, s.api, http.MethodPost, "/user/ingredients", body)
	}, MutateOptions[domain.UserIngredient]{
		Optimistic: []OptimisticUpdate{editPantry(func(items []domain.UserIngredient) []domain.UserIngredient {
			return append(items, item)
		})},
		Invalidates: []cache.QueryKey{userIngredientsKey()},
	})
}

// UpdatePantryItem changes quantity and unit of a pantry entry
func (s *IngredientService) UpdatePantryItem(ctx context.Context, ingredientID string, quantity float64, unit string) (domain.UserIngredient, error) {
	body := map[string]any{"quantity": quantity, "unit": unit}

	return Mutate(ctx, s.mutations, func(ctx context.Context) (domain.UserIngredient, error) {
		return sendData[domain.UserIngredient](ctx, s.api, http.MethodPut, "/user/ingredients/"+url.PathEscape(ingredientID), body)
	}, MutateOptions[domain.UserIngredient]{
		Optimistic: []OptimisticUpdate{editPantry(func(items []domain.UserIngredient) []domain.UserIngredient {
			for i := range items {
				if items[i].IngredientID == ingredientID {
					items[i].Quantity = quantity
					items[i].Unit = unit
				}
			}
			return items
		})},
		Invalidates: []cache.QueryKey{userIngredientsKey()},
	})
}

// RemoveFromPantry removes an ingredient from the pantry
func (s *IngredientService) RemoveFromPantry(ctx context.Context, ingredientID string) error {
	_, err := Mutate(ctx, s.mutations, func(ctx context.Context) (struct{}, error) {
		_, err := s.api.Do(ctx, backend.Request{Method: http.MethodDelete, Path: "/user/ingredients/" + url.PathEscape(ingredientID)})
		return struct{}{}, err
	}, MutateOptions[struct{}]{
		Optimistic: []OptimisticUpdate{editPantry(func(items []domain.UserIngredient) []domain.UserIngredient {
			out := items[:0]
			for _, it := range items {
				if it.IngredientID != ingredientID {
					out = append(out, it)
				}
			}
			return out
		})},
		Invalidates: []cache.QueryKey{userIngredientsKey()},
	})
	return err
}

// editPantry applies edit to a copy of the cached pantry
func editPantry(edit func([]domain.UserIngredient) []domain.UserIngredient) OptimisticUpdate {
	return OptimisticUpdate{
		Key: userIngredientsKey(),
		Update: func(prev any, ok bool) any {
			items, isList := prev.([]domain.UserIngredient)
			if !ok || !isList {
				return nil
			}
			return edit(append([]domain.UserIngredient(nil), items...))
		},
	}
}

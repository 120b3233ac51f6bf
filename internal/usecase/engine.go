package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// EngineConfig collects the settings of every component
type EngineConfig struct {
	Backend backend.ClientConfig
	Cache   cache.Config
	Auth    TokenManagerConfig

	PageSize        int
	MatchPoolSize   int
	Debounce        time.Duration
	MinQueryLength  int
	MaxQueryLength  int
	IngredientLimit int
}

// Engine is the context object holding one instance of every component.
// It is built once at start-up and passed to its consumers.
type Engine struct {
	Tokens      *TokenManager
	Cache       *cache.QueryCache
	API         *API
	Mutations   *MutationExecutor
	Queries     *QueryPreprocessor
	Auth        *AuthService
	Recipes     *RecipeService
	Favorites   *FavoritesService
	Ingredients *IngredientService

	debounce time.Duration
	logger   *zap.Logger
}

// NewEngine wires the components over the real backend transport and
// restores the persisted session from store
func NewEngine(ctx context.Context, cfg EngineConfig, store domain.SecureStore, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens := NewTokenManager(store, nil, cfg.Auth, logger)
	client := backend.NewClient(cfg.Backend, tokens, logger)
	return NewEngineWithTransport(ctx, cfg, client, tokens, logger)
}

// NewEngineWithTransport wires the components over transport
func NewEngineWithTransport(ctx context.Context, cfg EngineConfig, transport Transport, tokens *TokenManager, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := tokens.Load(ctx); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	queryCache := cache.New(cfg.Cache, logger)
	api := NewAPI(transport, tokens, logger)
	mutations := NewMutationExecutor(queryCache, logger)
	queries := NewQueryPreprocessor(cfg.MinQueryLength, cfg.MaxQueryLength)

	auth := NewAuthService(api, tokens, queryCache, mutations, logger)
	if tokens.refresh == nil {
		tokens.refresh = auth.RefreshTokens
	}
	// a session ended by a failed refresh must not leak its data
	tokens.OnLoggedOut(queryCache.Clear)

	e := &Engine{
		Tokens:    tokens,
		Cache:     queryCache,
		API:       api,
		Mutations: mutations,
		Queries:   queries,
		Auth:      auth,
		Recipes: NewRecipeService(api, queryCache, mutations, tokens, queries, RecipeServiceConfig{
			PageSize:      cfg.PageSize,
			MatchPoolSize: cfg.MatchPoolSize,
		}, logger),
		Favorites: NewFavoritesService(api, queryCache, mutations, tokens, cfg.PageSize, logger),
		Ingredients: NewIngredientService(api, queryCache, mutations, tokens, queries, IngredientServiceConfig{
			SearchLimit: cfg.IngredientLimit,
			Debounce:    cfg.Debounce,
		}, logger),
		debounce: cfg.Debounce,
		logger:   logger.Named("engine"),
	}

	e.logger.Info("engine ready",
		zap.String("session", string(tokens.State())),
		zap.String("language", tokens.Language()),
	)
	return e, nil
}

// SetLanguage changes the content language and marks every cached query
// stale, since responses are localized by the backend
func (e *Engine) SetLanguage(ctx context.Context, code string) (string, error) {
	lang, err := e.Tokens.SetLanguage(ctx, code)
	if err != nil {
		return lang, err
	}
	e.Cache.Invalidate(cache.Key())
	return lang, nil
}

// MatchPantry ranks recipes against the user's own ingredients
func (e *Engine) MatchPantry(ctx context.Context, filter MatchFilter) ([]domain.MatchResult, error) {
	names, err := e.Ingredients.PantryNames(ctx)
	if err != nil {
		return nil, err
	}
	return e.Recipes.MatchByIngredients(ctx, names, filter)
}

// NewRecipeSearch returns a debounced recipe search controller
func (e *Engine) NewRecipeSearch(onResult func(SearchResult[[]domain.Recipe])) *SearchController[[]domain.Recipe] {
	return NewSearchController(e.Recipes.SearchFunc(), SearchConfig{
		Debounce:     e.debounce,
		Preprocessor: e.Queries,
	}, onResult, e.logger)
}

// Close stops background work
func (e *Engine) Close() {
	e.Cache.Close()
}

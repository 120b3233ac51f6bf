package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"github.com/mycheff/engine/internal/usecase"
	"go.uber.org/zap"
)

// AuthUsecase is the session surface used by the bridge
type AuthUsecase interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.User, error)
	Register(ctx context.Context, reg domain.Registration) (domain.User, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (domain.User, error)
	IsAuthenticated() bool
}

// RecipeUsecase is the recipe surface used by the bridge
type RecipeUsecase interface {
	List(ctx context.Context, filters domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error)
	LoadMore(ctx context.Context, filters domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error)
	Refresh(ctx context.Context, filters domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error)
	Detail(ctx context.Context, id string) (domain.Recipe, error)
	Search(ctx context.Context, query string) (domain.Page[domain.Recipe], error)
	MatchByIngredients(ctx context.Context, names []string, filter usecase.MatchFilter) ([]domain.MatchResult, error)
}

// FavoritesUsecase is the favorites surface used by the bridge
type FavoritesUsecase interface {
	List(ctx context.Context) (domain.InfiniteData[domain.Recipe], error)
	Add(ctx context.Context, recipeID string) error
	Remove(ctx context.Context, recipeID string) error
}

// IngredientUsecase is the ingredient surface used by the bridge
type IngredientUsecase interface {
	Search(ctx context.Context, text string) ([]domain.Ingredient, error)
}

// EngineUsecase covers the operations spanning several services
type EngineUsecase interface {
	SetLanguage(ctx context.Context, code string) (string, error)
	MatchPantry(ctx context.Context, filter usecase.MatchFilter) ([]domain.MatchResult, error)
}

// CacheInspector exposes cache maintenance
type CacheInspector interface {
	Stats() cache.Stats
	Invalidate(prefix cache.QueryKey) int
}

// Services groups the dependencies of Handler
type Services struct {
	Auth        AuthUsecase
	Recipes     RecipeUsecase
	Favorites   FavoritesUsecase
	Ingredients IngredientUsecase
	Engine      EngineUsecase
	Cache       CacheInspector
}

// ServicesFromEngine picks the bridge dependencies out of an engine
func ServicesFromEngine(e *usecase.Engine) Services {
	return Services{
		Auth:        e.Auth,
		Recipes:     e.Recipes,
		Favorites:   e.Favorites,
		Ingredients: e.Ingredients,
		Engine:      e,
		Cache:       e.Cache,
	}
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	services Services
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{services: services, logger: logger.Named("bridge")}
}

// HealthCheck returns the health status of the bridge
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"service":       "mycheff-engine",
		"version":       "1.0.0",
		"authenticated": h.services.Auth.IsAuthenticated(),
	})
}

// Login signs in with email and password
func (h *Handler) Login(c *gin.Context) {
	var creds domain.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		badRequest(c, "invalid login request")
		return
	}
	user, err := h.services.Auth.Login(c.Request.Context(), creds)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

// Register creates an account and signs in
func (h *Handler) Register(c *gin.Context) {
	var reg domain.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		badRequest(c, "invalid registration request")
		return
	}
	user, err := h.services.Auth.Register(c.Request.Context(), reg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, success{Success: true, Data: user})
}

// Logout ends the session
func (h *Handler) Logout(c *gin.Context) {
	if err := h.services.Auth.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, success{Success: true, Message: "logged out"})
}

// Profile returns the signed-in user
func (h *Handler) Profile(c *gin.Context) {
	user, err := h.services.Auth.Profile(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

// SetLanguage changes the content language
func (h *Handler) SetLanguage(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "language code is required")
		return
	}
	lang, err := h.services.Engine.SetLanguage(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"language": lang})
}

// ListRecipes returns the loaded pages of the filtered recipe list
func (h *Handler) ListRecipes(c *gin.Context) {
	h.recipeList(c, h.services.Recipes.List)
}

// MoreRecipes loads the next page of the filtered recipe list
func (h *Handler) MoreRecipes(c *gin.Context) {
	h.recipeList(c, h.services.Recipes.LoadMore)
}

// RefreshRecipes reloads the filtered recipe list from page 1
func (h *Handler) RefreshRecipes(c *gin.Context) {
	h.recipeList(c, h.services.Recipes.Refresh)
}

func (h *Handler) recipeList(c *gin.Context, load func(context.Context, domain.RecipeFilters) (domain.InfiniteData[domain.Recipe], error)) {
	filters, err := parseFilters(c)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := load(c.Request.Context(), filters)
	if err != nil && !isNoMorePages(err) {
		respondError(c, err)
		return
	}
	respondInfinite(c, data)
}

// parseFilters reads recipe filters from the query string
func parseFilters(c *gin.Context) (domain.RecipeFilters, error) {
	f := domain.RecipeFilters{
		CategoryIDs:  c.QueryArray("categoryIds"),
		SortBy:       c.Query("sortBy"),
		PremiumOnly:  c.Query("isPremium") == "true",
		FeaturedOnly: c.Query("isFeatured") == "true",
	}
	var err error
	if f.MaxCookTime, err = queryInt(c, "maxCookingTime"); err != nil {
		return f, err
	}
	if f.Difficulty, err = queryInt(c, "difficultyLevel"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewError(domain.KindValidation, name+" must be a non-negative integer", err)
	}
	return n, nil
}

// RecipeDetail returns one recipe
func (h *Handler) RecipeDetail(c *gin.Context) {
	recipe, err := h.services.Recipes.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, recipe)
}

// SearchRecipes runs a free-text recipe search
func (h *Handler) SearchRecipes(c *gin.Context) {
	page, err := h.services.Recipes.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// matchRequest is the body of the match endpoints
type matchRequest struct {
	Ingredients     []string `json:"ingredients"`
	MinMatchPercent float64  `json:"minMatchPercent"`
	MaxMissing      int      `json:"maxMissing"`
}

func (r matchRequest) filter() usecase.MatchFilter {
	return usecase.MatchFilter{MinMatchPercent: r.MinMatchPercent, MaxMissing: r.MaxMissing}
}

// MatchRecipes ranks recipes against the ingredients in the body. Without
// ingredients the user's pantry is used.
func (h *Handler) MatchRecipes(c *gin.Context) {
	var req matchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid match request")
			return
		}
	}
	if req.MinMatchPercent < 0 || req.MinMatchPercent > 1 || req.MaxMissing < 0 {
		badRequest(c, "minMatchPercent must be within 0..1 and maxMissing must not be negative")
		return
	}

	var (
		results []domain.MatchResult
		err     error
	)
	names := compact(req.Ingredients)
	if len(names) == 0 {
		results, err = h.services.Engine.MatchPantry(c.Request.Context(), req.filter())
	} else {
		results, err = h.services.Recipes.MatchByIngredients(c.Request.Context(), names, req.filter())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, results)
}

func compact(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ListFavorites returns the loaded favorites
func (h *Handler) ListFavorites(c *gin.Context) {
	data, err := h.services.Favorites.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondInfinite(c, data)
}

// AddFavorite marks a recipe as favorite
func (h *Handler) AddFavorite(c *gin.Context) {
	if err := h.services.Favorites.Add(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, success{Success: true, Message: "added to favorites"})
}

// RemoveFavorite drops a recipe from favorites
func (h *Handler) RemoveFavorite(c *gin.Context) {
	if err := h.services.Favorites.Remove(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, success{Success: true, Message: "removed from favorites"})
}

// SearchIngredients serves ingredient autocomplete
func (h *Handler) SearchIngredients(c *gin.Context) {
	ings, err := h.services.Ingredients.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, ings)
}

// CacheStats reports the query cache counters
func (h *Handler) CacheStats(c *gin.Context) {
	respondOK(c, h.services.Cache.Stats())
}

// InvalidateCache marks every entry under the given key prefix stale. An
// empty prefix invalidates everything.
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req struct {
		Prefix []any `json:"prefix"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "prefix must be a JSON array")
			return
		}
	}
	n := h.services.Cache.Invalidate(cache.Key(req.Prefix...))
	h.logger.Info("cache invalidated", zap.Any("prefix", req.Prefix), zap.Int("entries", n))
	respondOK(c, gin.H{"invalidated": n})
}

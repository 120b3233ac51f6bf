package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"github.com/mycheff/engine/internal/infrastructure/securestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the subset of the MyCheff API used by the engine tests
type fakeBackend struct {
	refreshes atomic.Int32

	mutex      sync.Mutex
	validToken string
	languages  []string
}

func (b *fakeBackend) token() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.validToken
}

func (b *fakeBackend) seenLanguages() []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]string(nil), b.languages...)
}

func (b *fakeBackend) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")

	api.POST("/auth/refresh", func(c *gin.Context) {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.RefreshToken != "refresh-1" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid refresh token"})
			return
		}
		b.refreshes.Add(1)
		b.mutex.Lock()
		b.validToken = "access-2"
		b.mutex.Unlock()
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"token": "access-2", "refreshToken": "refresh-2"}})
	})

	authed := api.Group("", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+b.token() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "token expired"})
			return
		}
		c.Next()
	})

	authed.GET("/recipes", func(c *gin.Context) {
		b.mutex.Lock()
		b.languages = append(b.languages, c.GetHeader("Accept-Language"))
		b.mutex.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": []domain.Recipe{
				recipe("soup", "tomato", "garlic", "onion"),
				recipe("salad", "tomato", "cucumber"),
			},
			"pagination": gin.H{"page": 1, "limit": 100, "total": 2, "totalPages": 1},
		})
	})
	authed.GET("/user/ingredients", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": []domain.UserIngredient{
			{IngredientID: "i1", Name: "Tomato"},
			{IngredientID: "i2", Name: "Onion"},
		}})
	})

	return r
}

func newHTTPEngine(t *testing.T, b *fakeBackend, store domain.SecureStore) *Engine {
	t.Helper()
	server := httptest.NewServer(b.router())
	t.Cleanup(server.Close)

	noRetry := cache.NoRetry()
	e, err := NewEngine(context.Background(), EngineConfig{
		Backend: backend.ClientConfig{BaseURL: server.URL + "/api/v1"},
		Cache:   cache.Config{Retry: &noRetry},
	}, store, nil)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestEngine_RefreshesExpiredSessionOverHTTP(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{validToken: "access-2"}
	store := seededStore(t, "access-1", "refresh-1")
	e := newHTTPEngine(t, b, store)

	results, err := e.MatchPantry(ctx, MatchFilter{})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "soup", results[0].RecipeID)
	assert.InDelta(t, 2.0/3.0, results[0].MatchPercentage, 1e-9)
	assert.Equal(t, "salad", results[1].RecipeID)

	assert.Equal(t, int32(1), b.refreshes.Load())
	assert.Equal(t, "access-2", e.Tokens.AccessToken())
	persisted, err := store.Get(ctx, domain.StoreKeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", persisted)
}

func TestEngine_FailedRefreshEndsSessionAndClearsCache(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{validToken: "never"}
	e := newHTTPEngine(t, b, seededStore(t, "access-1", "revoked"))
	e.Cache.SetData(favoriteListKey(), domain.InfiniteData[domain.Recipe]{})

	_, err := e.Ingredients.Pantry(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAuthentication))

	assert.Equal(t, StateLoggedOut, e.Tokens.State())
	assert.Zero(t, e.Cache.Size())
}

func TestEngine_SetLanguageInvalidatesEverything(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{validToken: "access-1"}
	e := newHTTPEngine(t, b, seededStore(t, "access-1", "refresh-1"))

	_, err := e.Recipes.Popular(ctx)
	require.NoError(t, err)

	lang, err := e.SetLanguage(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "en", lang)

	_, err = e.Recipes.Popular(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tr", "en"}, b.seenLanguages())

	_, err = e.SetLanguage(ctx, "??")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestEngine_RestoresAnonymousSession(t *testing.T) {
	b := &fakeBackend{}
	e := newHTTPEngine(t, b, securestore.NewMemoryStore())

	assert.Equal(t, StateNoToken, e.Tokens.State())
	assert.Equal(t, DefaultLanguage, e.Tokens.Language())
	assert.False(t, e.Auth.IsAuthenticated())

	s := e.NewRecipeSearch(nil)
	s.Search("x")
	assert.Equal(t, SearchResult[[]domain.Recipe]{}, s.Results())
	s.Close()
}

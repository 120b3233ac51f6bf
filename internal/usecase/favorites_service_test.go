package usecase

import (
	"context"
	"net/http"
	"testing"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var session = domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"}

func TestFavorites_AddInvalidatesList(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, session)

	favorites := []domain.Recipe{{ID: "r2"}}
	e.transport.handle(http.MethodGet, "/users/me/favorites", func(req backend.Request) (*backend.Response, error) {
		return respondPage(favorites, 1, 2, len(favorites))
	})
	e.transport.handle(http.MethodPost, "/users/me/favorites/r1", func(req backend.Request) (*backend.Response, error) {
		favorites = append([]domain.Recipe{{ID: "r1"}}, favorites...)
		return respond(nil)
	})

	list, err := e.Favorites.List(ctx)
	require.NoError(t, err)
	require.Len(t, list.Items(), 1)

	require.NoError(t, e.Favorites.Add(ctx, "r1"))

	st, ok := e.Cache.GetState(favoriteListKey())
	require.True(t, ok)
	assert.True(t, st.Invalidated)

	list, err = e.Favorites.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, e.transport.count(http.MethodGet, "/users/me/favorites"))
	require.Len(t, list.Items(), 2)
	assert.Equal(t, "r1", list.Items()[0].ID)

	isFav, ok := cache.Get[bool](e.Cache, favoriteCheckKey("r1"))
	require.True(t, ok)
	assert.True(t, isFav)
}

func TestFavorites_RemoveRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, session)

	e.transport.handle(http.MethodGet, "/users/me/favorites", func(req backend.Request) (*backend.Response, error) {
		return respondPage([]domain.Recipe{{ID: "r1"}, {ID: "r2"}}, 1, 2, 2)
	})
	e.transport.handle(http.MethodDelete, "/users/me/favorites/r1", func(req backend.Request) (*backend.Response, error) {
		return fail(domain.KindServer, http.StatusInternalServerError)
	})

	before, err := e.Favorites.List(ctx)
	require.NoError(t, err)

	err = e.Favorites.Remove(ctx, "r1")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindServer))

	after, ok := cache.Get[domain.InfiniteData[domain.Recipe]](e.Cache, favoriteListKey())
	require.True(t, ok)
	assert.Equal(t, before, after)

	_, exists := e.Cache.GetData(favoriteCheckKey("r1"))
	assert.False(t, exists)
}

func TestFavorites_RemoveMany(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, session)

	e.transport.handle(http.MethodPost, "/users/me/favorites/bulk-delete", func(req backend.Request) (*backend.Response, error) {
		assert.Equal(t, map[string]any{"recipeIds": []string{"r1", "r2"}}, req.Body)
		return respond(map[string]int{"removed": 2})
	})
	e.Cache.SetData(favoriteCheckKey("r1"), true)

	n, err := e.Favorites.RemoveMany(ctx, []string{"r1", "r2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, _ := e.Cache.GetState(favoriteCheckKey("r1"))
	assert.Equal(t, false, st.Data)
	assert.True(t, st.Invalidated)

	n, err = e.Favorites.RemoveMany(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFavorites_IsFavorite(t *testing.T) {
	e := newTestEngine(t, session)
	e.transport.handle(http.MethodGet, "/user/favorites/r1/check", func(req backend.Request) (*backend.Response, error) {
		return respond(map[string]bool{"isFavorite": true})
	})

	for i := 0; i < 2; i++ {
		fav, err := e.Favorites.IsFavorite(context.Background(), "r1")
		require.NoError(t, err)
		assert.True(t, fav)
	}
	assert.Equal(t, 1, e.transport.count(http.MethodGet, "/user/favorites/r1/check"))
}

func TestFavorites_LoadMore(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, session)

	e.transport.handle(http.MethodGet, "/users/me/favorites", func(req backend.Request) (*backend.Response, error) {
		switch req.Query.Get("page") {
		case "1":
			return respondPage([]domain.Recipe{{ID: "r1"}, {ID: "r2"}}, 1, 2, 3)
		default:
			return respondPage([]domain.Recipe{{ID: "r3"}}, 2, 2, 3)
		}
	})

	data, err := e.Favorites.LoadMore(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Pages, 1)

	data, err = e.Favorites.LoadMore(ctx)
	require.NoError(t, err)
	require.Len(t, data.Pages, 2)
	assert.False(t, data.HasNext())
	assert.Len(t, data.Items(), 3)

	_, err = e.Favorites.LoadMore(ctx)
	assert.ErrorIs(t, err, domain.ErrNoMorePages)

	data, err = e.Favorites.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, data.Pages, 1)
}

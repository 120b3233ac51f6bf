package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"github.com/mycheff/engine/internal/infrastructure/securestore"
	"github.com/stretchr/testify/require"
)

// fakeTransport routes requests to per-route handlers and records them
type fakeTransport struct {
	mutex    sync.Mutex
	routes   map[string]func(req backend.Request) (*backend.Response, error)
	requests []backend.Request
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{routes: make(map[string]func(backend.Request) (*backend.Response, error))}
}

func route(method, path string) string { return method + " " + path }

func (f *fakeTransport) handle(method, path string, fn func(req backend.Request) (*backend.Response, error)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.routes[route(method, path)] = fn
}

func (f *fakeTransport) Execute(ctx context.Context, req backend.Request) (*backend.Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	f.mutex.Lock()
	f.requests = append(f.requests, req)
	fn, ok := f.routes[route(req.Method, req.Path)]
	f.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, domain.AsError(err)
	}
	if !ok {
		return nil, &domain.Error{Kind: domain.KindNotFound, Message: "no route " + route(req.Method, req.Path), HTTPStatus: http.StatusNotFound}
	}
	return fn(req)
}

func (f *fakeTransport) count(method, path string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeTransport) last(method, path string) (backend.Request, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if r := f.requests[i]; r.Method == method && r.Path == path {
			return r, true
		}
	}
	return backend.Request{}, false
}

func respond(data any) (*backend.Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &backend.Response{Status: http.StatusOK, Data: raw}, nil
}

func respondPage(data any, page, limit, total int) (*backend.Response, error) {
	resp, err := respond(data)
	if err != nil {
		return nil, err
	}
	resp.Pagination = json.RawMessage(fmt.Sprintf(`{"page":%d,"limit":%d,"total":%d}`, page, limit, total))
	return resp, nil
}

func fail(kind domain.ErrorKind, status int) (*backend.Response, error) {
	return nil, &domain.Error{Kind: kind, Message: string(kind), HTTPStatus: status}
}

func unauthorized() (*backend.Response, error) {
	return fail(domain.KindAuthentication, http.StatusUnauthorized)
}

// newTestCache returns a cache that never retries and is closed with the test
func newTestCache(t *testing.T) *cache.QueryCache {
	t.Helper()
	noRetry := cache.NoRetry()
	c := cache.New(cache.Config{Retry: &noRetry, GCInterval: time.Hour}, nil)
	t.Cleanup(c.Close)
	return c
}

// testEngine is an engine over a fake transport with a signed-in session
type testEngine struct {
	*Engine
	transport *fakeTransport
	store     *securestore.MemoryStore
}

func newTestEngine(t *testing.T, session domain.TokenPair) *testEngine {
	t.Helper()
	ctx := context.Background()

	store := securestore.NewMemoryStore()
	if !session.IsZero() {
		require.NoError(t, store.Set(ctx, map[string]string{
			domain.StoreKeyAccessToken:  session.AccessToken,
			domain.StoreKeyRefreshToken: session.RefreshToken,
		}))
	}

	transport := newFakeTransport()
	noRetry := cache.NoRetry()
	cfg := EngineConfig{
		Cache:    cache.Config{Retry: &noRetry, GCInterval: time.Hour},
		Auth:     TokenManagerConfig{DefaultLanguage: "en"},
		PageSize: 2,
		Debounce: 20 * time.Millisecond,
	}
	tokens := NewTokenManager(store, nil, cfg.Auth, nil)
	e, err := NewEngineWithTransport(ctx, cfg, transport, tokens, nil)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	return &testEngine{Engine: e, transport: transport, store: store}
}

func recipe(id string, required ...string) domain.Recipe {
	r := domain.Recipe{ID: id, Title: "Recipe " + id}
	for i, name := range required {
		r.Ingredients = append(r.Ingredients, domain.RecipeIngredient{
			IngredientID: fmt.Sprintf("%s-i%d", id, i),
			Name:         name,
			IsRequired:   true,
		})
	}
	return r
}

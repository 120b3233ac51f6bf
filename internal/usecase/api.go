package usecase

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"go.uber.org/zap"
)

// Transport executes a single backend call
type Transport interface {
	Execute(ctx context.Context, req backend.Request) (*backend.Response, error)
}

// API sends requests with the session's access token. A request rejected
// with AUTHENTICATION is replayed at most once, after a refresh.
type API struct {
	transport Transport
	tokens    *TokenManager
	logger    *zap.Logger
}

// NewAPI creates the authenticated request layer
func NewAPI(transport Transport, tokens *TokenManager, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		transport: transport,
		tokens:    tokens,
		logger:    logger.Named("api"),
	}
}

// Do executes req with the current access token
func (a *API) Do(ctx context.Context, req backend.Request) (*backend.Response, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.AccessToken = token

	resp, err := a.transport.Execute(ctx, req)
	if err == nil || token == "" || !domain.IsKind(err, domain.KindAuthentication) {
		return resp, err
	}

	a.logger.Debug("request rejected, refreshing session", zap.String("path", req.Path))
	pair, err := a.tokens.RefreshIfNeeded(ctx, token)
	if err != nil {
		return nil, err
	}

	req.AccessToken = pair.AccessToken
	resp, err = a.transport.Execute(ctx, req)
	if domain.IsKind(err, domain.KindAuthentication) {
		a.logger.Warn("replayed request rejected, ending session", zap.String("path", req.Path))
		a.tokens.Expire(ctx)
	}
	return resp, err
}

// Public executes req without a token and without refresh handling
func (a *API) Public(ctx context.Context, req backend.Request) (*backend.Response, error) {
	req.AccessToken = ""
	return a.transport.Execute(ctx, req)
}

func getData[T any](ctx context.Context, a *API, path string, query url.Values) (T, error) {
	resp, err := a.Do(ctx, backend.Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		var zero T
		return zero, err
	}
	return backend.DecodeData[T](resp)
}

func sendData[T any](ctx context.Context, a *API, method, path string, body any) (T, error) {
	resp, err := a.Do(ctx, backend.Request{Method: method, Path: path, Body: body})
	if err != nil {
		var zero T
		return zero, err
	}
	return backend.DecodeData[T](resp)
}

func getPage[T any](ctx context.Context, a *API, path string, query url.Values) (domain.Page[T], error) {
	resp, err := a.Do(ctx, backend.Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return domain.Page[T]{}, err
	}
	return decodePage[T](resp)
}

func decodePage[T any](resp *backend.Response) (domain.Page[T], error) {
	items, err := backend.DecodeData[[]T](resp)
	if err != nil {
		return domain.Page[T]{}, err
	}
	cursor, err := NormalizePagination(resp.Pagination)
	if err != nil {
		return domain.Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return domain.Page[T]{Items: items, Cursor: cursor}, nil
}

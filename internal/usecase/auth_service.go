package usecase

import (
	"context"
	"net/http"
	"strings"

	"github.com/mycheff/engine/internal/domain"
	"github.com/mycheff/engine/internal/infrastructure/backend"
	"github.com/mycheff/engine/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// AuthService handles login, registration, logout and the user profile
type AuthService struct {
	api       *API
	tokens    *TokenManager
	cache     *cache.QueryCache
	mutations *MutationExecutor
	logger    *zap.Logger
}

// NewAuthService creates an auth service
func NewAuthService(api *API, tokens *TokenManager, c *cache.QueryCache, mutations *MutationExecutor, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		api:       api,
		tokens:    tokens,
		cache:     c,
		mutations: mutations,
		logger:    logger.Named("auth"),
	}
}

// Login signs in and stores the returned tokens. The cache of a previous
// session is dropped and nothing is pre-populated.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return domain.User{}, domain.NewError(domain.KindValidation, "email and password are required", nil)
	}
	return s.authenticate(ctx, "/auth/login", creds)
}

// Register creates an account and signs in
func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	if strings.TrimSpace(reg.Email) == "" || reg.Password == "" || strings.TrimSpace(reg.Username) == "" {
		return domain.User{}, domain.NewError(domain.KindValidation, "username, email and password are required", nil)
	}
	if reg.PreferredLanguage == "" {
		reg.PreferredLanguage = s.tokens.Language()
	}
	return s.authenticate(ctx, "/auth/register", reg)
}

func (s *AuthService) authenticate(ctx context.Context, path string, body any) (domain.User, error) {
	resp, err := s.api.Public(ctx, backend.Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return domain.User{}, err
	}
	result, err := backend.DecodeData[domain.AuthResult](resp)
	if err != nil {
		return domain.User{}, err
	}
	if result.Token == "" {
		return domain.User{}, domain.NewError(domain.KindValidation, "authentication response has no token", domain.ErrMalformedEnvelope)
	}

	s.cache.Clear()
	if err := s.tokens.SetTokens(ctx, result.Tokens()); err != nil {
		return domain.User{}, err
	}
	if result.User.PreferredLanguage != "" {
		if _, err := s.tokens.SetLanguage(ctx, result.User.PreferredLanguage); err != nil {
			s.logger.Warn("ignoring preferred language", zap.String("language", result.User.PreferredLanguage), zap.Error(err))
		}
	}

	s.logger.Info("signed in", zap.String("user_id", result.User.ID))
	return result.User, nil
}

// Logout ends the session. Local tokens and the whole query cache are
// cleared even when the backend call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	if s.tokens.AccessToken() != "" {
		if _, err := s.api.Do(ctx, backend.Request{Method: http.MethodPost, Path: "/auth/logout"}); err != nil {
			s.logger.Warn("backend logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	s.cache.Clear()
	return s.tokens.Clear(ctx)
}

// RefreshTokens exchanges a refresh token at the backend. It is the
// TokenManager's RefreshFunc and bypasses the replay logic.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	resp, err := s.api.Public(ctx, backend.Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refreshToken": refreshToken},
	})
	if err != nil {
		return domain.TokenPair{}, err
	}
	return backend.DecodeData[domain.TokenPair](resp)
}

// Profile returns the signed-in user's profile
func (s *AuthService) Profile(ctx context.Context) (domain.User, error) {
	if s.tokens.AccessToken() == "" {
		return domain.User{}, domain.AsError(domain.ErrNotAuthenticated)
	}
	return cache.Query(ctx, s.cache, profileKey(), func(ctx context.Context) (domain.User, error) {
		return getData[domain.User](ctx, s.api, "/user/profile", nil)
	})
}

// UpdateProfile patches the profile and caches the server's version
func (s *AuthService) UpdateProfile(ctx context.Context, changes map[string]any) (domain.User, error) {
	return Mutate(ctx, s.mutations, func(ctx context.Context) (domain.User, error) {
		return sendData[domain.User](ctx, s.api, http.MethodPatch, "/user/profile", changes)
	}, MutateOptions[domain.User]{
		OnSuccess: func(c *cache.QueryCache, user domain.User) {
			c.SetData(profileKey(), user)
		},
	})
}

// Languages returns the content languages offered by the backend
func (s *AuthService) Languages(ctx context.Context) ([]domain.Language, error) {
	return cache.Query(ctx, s.cache, languageKeys, func(ctx context.Context) ([]domain.Language, error) {
		resp, err := s.api.Public(ctx, backend.Request{Method: http.MethodGet, Path: "/languages"})
		if err != nil {
			return nil, err
		}
		return backend.DecodeData[[]domain.Language](resp)
	})
}

// IsAuthenticated reports whether a session is active
func (s *AuthService) IsAuthenticated() bool {
	return s.tokens.State() == StateAuthenticated || s.tokens.State() == StateRefreshing
}

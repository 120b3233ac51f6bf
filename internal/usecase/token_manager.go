package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mycheff/engine/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

// TokenState is the session state owned by TokenManager
type TokenState string

const (
	StateNoToken       TokenState = "NO_TOKEN"
	StateAuthenticated TokenState = "AUTHENTICATED"
	StateRefreshing    TokenState = "REFRESHING"
	StateLoggedOut     TokenState = "LOGGED_OUT"
)

const (
	DefaultLanguage    = "tr"
	DefaultRefreshSkew = 30 * time.Second
)

// RefreshFunc exchanges a refresh token for a new token pair
type RefreshFunc func(ctx context.Context, refreshToken string) (domain.TokenPair, error)

// TokenManagerConfig holds configuration for the token manager
type TokenManagerConfig struct {
	DefaultLanguage string
	// RefreshSkew refreshes access tokens this long before their exp claim
	RefreshSkew time.Duration
	Now         func() time.Time
}

// TokenManager owns the access/refresh token pair and the preferred
// language. Concurrent refresh requests share a single backend call.
type TokenManager struct {
	store           domain.SecureStore
	refresh         RefreshFunc
	group           singleflight.Group
	defaultLanguage string
	refreshSkew     time.Duration
	now             func() time.Time
	logger          *zap.Logger

	mutex     sync.RWMutex
	tokens    domain.TokenPair
	state     TokenState
	language  string
	listeners []func()
}

// NewTokenManager creates a token manager persisting to store
func NewTokenManager(store domain.SecureStore, refresh RefreshFunc, cfg TokenManagerConfig, logger *zap.Logger) *TokenManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	lang := cfg.DefaultLanguage
	if lang == "" {
		lang = DefaultLanguage
	}
	skew := cfg.RefreshSkew
	if skew == 0 {
		skew = DefaultRefreshSkew
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenManager{
		store:           store,
		refresh:         refresh,
		defaultLanguage: lang,
		refreshSkew:     skew,
		now:             now,
		logger:          logger.Named("auth"),
		state:           StateNoToken,
		language:        lang,
	}
}

// Load restores the persisted session
func (m *TokenManager) Load(ctx context.Context) error {
	access, err := m.get(ctx, domain.StoreKeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := m.get(ctx, domain.StoreKeyRefreshToken)
	if err != nil {
		return err
	}
	lang, err := m.get(ctx, domain.StoreKeyLanguage)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tokens = domain.TokenPair{AccessToken: access, RefreshToken: refresh}
	if m.tokens.IsZero() {
		m.state = StateNoToken
	} else {
		m.state = StateAuthenticated
	}
	if lang != "" {
		m.language = lang
	}
	m.logger.Debug("session loaded", zap.String("state", string(m.state)), zap.String("language", m.language))
	return nil
}

func (m *TokenManager) get(ctx context.Context, key string) (string, error) {
	v, err := m.store.Get(ctx, key)
	if errors.Is(err, domain.ErrStoreKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return v, nil
}

// State returns the current session state
func (m *TokenManager) State() TokenState {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.state
}

// AccessToken returns the current access token without refreshing it
func (m *TokenManager) AccessToken() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.tokens.AccessToken
}

// Tokens returns the current token pair
func (m *TokenManager) Tokens() domain.TokenPair {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.tokens
}

// Token returns the access token to send with a request. A token whose exp
// claim is within the refresh skew is refreshed first. Returns "" when there
// is no session.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mutex.RLock()
	pair := m.tokens
	m.mutex.RUnlock()

	if pair.IsZero() {
		return "", nil
	}
	exp, ok := tokenExpiry(pair.AccessToken)
	if !ok || pair.RefreshToken == "" || m.now().Add(m.refreshSkew).Before(exp) {
		return pair.AccessToken, nil
	}

	m.logger.Debug("access token expiring, refreshing", zap.Time("exp", exp))
	fresh, err := m.RefreshIfNeeded(ctx, pair.AccessToken)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend is the only party that verifies tokens
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// RefreshIfNeeded refreshes the session after staleToken was rejected.
// If the current access token already differs from staleToken another
// caller has refreshed it and the current pair is returned as is.
// Concurrent callers share one refresh call. When the refresh fails the
// session is terminated and every caller receives an AUTHENTICATION error.
func (m *TokenManager) RefreshIfNeeded(ctx context.Context, staleToken string) (domain.TokenPair, error) {
	m.mutex.RLock()
	current := m.tokens
	m.mutex.RUnlock()

	if !current.IsZero() && staleToken != "" && current.AccessToken != staleToken {
		return current, nil
	}

	// the refresh outlives any single caller's cancellation
	refreshCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan("refresh", func() (any, error) {
		return m.doRefresh(refreshCtx, staleToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.TokenPair{}, res.Err
		}
		return res.Val.(domain.TokenPair), nil
	case <-ctx.Done():
		// logged-out listeners may cancel the caller before the result is delivered
		if m.State() == StateLoggedOut {
			return domain.TokenPair{}, sessionExpired(0, domain.ErrNoRefreshToken)
		}
		return domain.TokenPair{}, domain.AsError(ctx.Err())
	}
}

func sessionExpired(status int, cause error) *domain.Error {
	return &domain.Error{
		Kind:       domain.KindAuthentication,
		Message:    "session expired",
		HTTPStatus: status,
		Cause:      cause,
	}
}

// doRefresh runs inside the single-flight group. The staleness check is
// repeated under the lock since a refresh may have completed between the
// caller's check and its joining the group.
func (m *TokenManager) doRefresh(ctx context.Context, staleToken string) (domain.TokenPair, error) {
	m.mutex.Lock()
	if current := m.tokens; !current.IsZero() && staleToken != "" && current.AccessToken != staleToken {
		m.mutex.Unlock()
		return current, nil
	}
	refreshToken := m.tokens.RefreshToken
	if refreshToken == "" || m.refresh == nil {
		m.mutex.Unlock()
		m.terminate(ctx)
		return domain.TokenPair{}, sessionExpired(0, domain.ErrNoRefreshToken)
	}
	m.state = StateRefreshing
	m.mutex.Unlock()

	m.logger.Info("refreshing access token")
	pair, err := m.refresh(ctx, refreshToken)
	if err == nil && pair.IsZero() {
		err = domain.NewError(domain.KindValidation, "refresh returned no access token", nil)
	}
	if err != nil {
		m.logger.Warn("token refresh failed, ending session", zap.Error(err))
		m.terminate(ctx)
		return domain.TokenPair{}, sessionExpired(domain.StatusOf(err), err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	if err := m.SetTokens(ctx, pair); err != nil {
		// the new pair is live in memory even if it could not be persisted
		m.logger.Error("persist refreshed tokens", zap.Error(err))
	}
	return pair, nil
}

// SetTokens stores a new pair and marks the session authenticated
func (m *TokenManager) SetTokens(ctx context.Context, pair domain.TokenPair) error {
	m.mutex.Lock()
	m.tokens = pair
	if pair.IsZero() {
		m.state = StateNoToken
	} else {
		m.state = StateAuthenticated
	}
	m.mutex.Unlock()

	values := map[string]string{domain.StoreKeyAccessToken: pair.AccessToken}
	if pair.RefreshToken != "" {
		values[domain.StoreKeyRefreshToken] = pair.RefreshToken
	}
	if err := m.store.Set(ctx, values); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	if pair.RefreshToken == "" {
		return m.store.Delete(ctx, domain.StoreKeyRefreshToken)
	}
	return nil
}

// Clear ends the session on explicit logout
func (m *TokenManager) Clear(ctx context.Context) error {
	m.mutex.Lock()
	m.tokens = domain.TokenPair{}
	m.state = StateNoToken
	m.mutex.Unlock()

	return m.deleteTokens(ctx)
}

// Expire ends the session after the backend rejected a freshly refreshed token
func (m *TokenManager) Expire(ctx context.Context) {
	m.terminate(ctx)
}

// terminate clears the tokens, enters LOGGED_OUT and signals listeners
func (m *TokenManager) terminate(ctx context.Context) {
	m.mutex.Lock()
	m.tokens = domain.TokenPair{}
	m.state = StateLoggedOut
	listeners := append([]func(){}, m.listeners...)
	m.mutex.Unlock()

	if err := m.deleteTokens(ctx); err != nil {
		m.logger.Error("delete tokens", zap.Error(err))
	}
	for _, fn := range listeners {
		fn()
	}
}

func (m *TokenManager) deleteTokens(ctx context.Context) error {
	if err := m.store.Delete(ctx, domain.StoreKeyAccessToken, domain.StoreKeyRefreshToken); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// OnLoggedOut registers fn to be called when a failed refresh ends the session
func (m *TokenManager) OnLoggedOut(fn func()) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Language returns the preferred content language
func (m *TokenManager) Language() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.language
}

// SetLanguage validates, stores and persists the preferred language
func (m *TokenManager) SetLanguage(ctx context.Context, code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", domain.NewError(domain.KindValidation, fmt.Sprintf("invalid language code %q", code), err)
	}
	lang := tag.String()

	m.mutex.Lock()
	m.language = lang
	m.mutex.Unlock()

	if err := m.store.Set(ctx, map[string]string{domain.StoreKeyLanguage: lang}); err != nil {
		return lang, fmt.Errorf("persist language: %w", err)
	}
	return lang, nil
}

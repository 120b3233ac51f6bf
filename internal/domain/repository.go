package domain

import (
	"context"
)

// Keys under which the session state is persisted in a SecureStore
const (
	StoreKeyAccessToken  = "access_token"
	StoreKeyRefreshToken = "refresh_token"
	StoreKeyLanguage     = "user_language"
)

// SecureStore is the key-value store holding the persisted client state:
// the token pair and the preferred language. Get returns ErrStoreKeyNotFound
// for missing keys.
type SecureStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// LanguageSource provides the value of the Accept-Language header
type LanguageSource interface {
	Language() string
}

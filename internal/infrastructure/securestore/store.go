// Package securestore provides the SecureStore implementations holding the
// persisted session: access/refresh tokens and the preferred language.
package securestore

import (
	"fmt"

	"github.com/mycheff/engine/internal/domain"
)

// Config selects and configures a store implementation
type Config struct {
	Type       string // "memory", "file" or "redis"
	Path       string
	Passphrase string
	RedisURL   string
	KeyPrefix  string
	Session    string
}

// New builds the store selected by cfg.Type
func New(cfg Config) (domain.SecureStore, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Path, cfg.Passphrase)
	case "redis":
		return NewRedisStore(nil, RedisOptions{URL: cfg.RedisURL, KeyPrefix: cfg.KeyPrefix, Session: cfg.Session})
	default:
		return nil, fmt.Errorf("unknown secure store type: %q", cfg.Type)
	}
}

package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Config holds all configuration for the engine and its HTTP bridge
type Config struct {
	Backend BackendConfig
	Cache   CacheConfig
	Search  SearchConfig
	Auth    AuthConfig
	Store   StoreConfig
	Server  ServerConfig
	Log     LogConfig
}

// BackendConfig holds MyCheff backend configuration
type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	StaleTime      time.Duration `mapstructure:"stale_time"`
	GCTime         time.Duration `mapstructure:"gc_time"`
	GCInterval     time.Duration `mapstructure:"gc_interval"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
}

// SearchConfig holds search and list configuration
type SearchConfig struct {
	Debounce        time.Duration `mapstructure:"debounce"`
	MinQueryLength  int           `mapstructure:"min_query_length"`
	MaxQueryLength  int           `mapstructure:"max_query_length"`
	IngredientLimit int           `mapstructure:"ingredient_limit"`
	PageSize        int           `mapstructure:"page_size"`
	MatchPoolSize   int           `mapstructure:"match_pool_size"`
}

// AuthConfig holds session configuration
type AuthConfig struct {
	DefaultLanguage string        `mapstructure:"default_language"`
	RefreshSkew     time.Duration `mapstructure:"refresh_skew"`
}

// StoreConfig holds secure store configuration
type StoreConfig struct {
	Type       string `mapstructure:"type"` // "memory", "file" or "redis"
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
	RedisURL   string `mapstructure:"redis_url"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	Session    string `mapstructure:"session"`
}

// ServerConfig holds bridge server configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mycheff/")

	// MYCHEFF_BACKEND_BASE_URL overrides backend.base_url
	v.SetEnvPrefix("MYCHEFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports KEY=VALUE lines from ./.env. Variables that are
// already set win; a missing file is not an error.
func loadEnvFile() error {
	f, err := os.Open(".env")
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// setDefaults sets default configuration values. Every key needs a
// default so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:3000/api/v1")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.rate_limit", 0)
	v.SetDefault("backend.burst", 10)

	v.SetDefault("cache.stale_time", "5m")
	v.SetDefault("cache.gc_time", "10m")
	v.SetDefault("cache.gc_interval", "1m")
	v.SetDefault("cache.retry_count", 3)
	v.SetDefault("cache.retry_base_delay", "1s")
	v.SetDefault("cache.retry_max_delay", "30s")

	v.SetDefault("search.debounce", "300ms")
	v.SetDefault("search.min_query_length", 2)
	v.SetDefault("search.max_query_length", 100)
	v.SetDefault("search.ingredient_limit", 10)
	v.SetDefault("search.page_size", 20)
	v.SetDefault("search.match_pool_size", 100)

	v.SetDefault("auth.default_language", "tr")
	v.SetDefault("auth.refresh_skew", "30s")

	v.SetDefault("store.type", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.passphrase", "")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.key_prefix", "mycheff")
	v.SetDefault("store.session", "default")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8081"})

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required (set MYCHEFF_BACKEND_BASE_URL)")
	}
	if config.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive, got: %s", config.Backend.Timeout)
	}

	if config.Cache.RetryCount < 0 {
		return fmt.Errorf("cache retry count must not be negative, got: %d", config.Cache.RetryCount)
	}
	if config.Cache.GCTime < config.Cache.StaleTime {
		return fmt.Errorf("cache gc time (%s) must not be shorter than stale time (%s)", config.Cache.GCTime, config.Cache.StaleTime)
	}

	if config.Search.MinQueryLength < 1 || config.Search.MaxQueryLength < config.Search.MinQueryLength {
		return fmt.Errorf("search query length bounds are invalid: min %d, max %d", config.Search.MinQueryLength, config.Search.MaxQueryLength)
	}

	if _, err := language.Parse(config.Auth.DefaultLanguage); err != nil {
		return fmt.Errorf("auth default language %q is not a valid language tag", config.Auth.DefaultLanguage)
	}

	switch config.Store.Type {
	case "memory":
	case "file":
		if config.Store.Path == "" || config.Store.Passphrase == "" {
			return fmt.Errorf("store path and passphrase are required when store type is 'file'")
		}
	case "redis":
		if config.Store.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when store type is 'redis'")
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'file' or 'redis', got: %s", config.Store.Type)
	}

	switch config.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error, got: %s", config.Log.Level)
	}

	return nil
}

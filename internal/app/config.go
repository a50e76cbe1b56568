package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/aussiebroadwan/autocheck/pkg/credstore/drivers/redis"
	"github.com/aussiebroadwan/autocheck/pkg/httpx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. AUTOCHECK_BASE_URL.
const EnvPrefix = "AUTOCHECK"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config keys, shared by flags, environment variables and the config file.
const (
	KeyConfigFile         = "config"
	KeyEnvFile            = "env_file"
	KeyBaseURL            = "base_url"
	KeyTimeout            = "timeout"
	KeyStore              = "store"
	KeyStorePath          = "store_path"
	KeyRedisAddr          = "redis_addr"
	KeyRedisPassword      = "redis_password"
	KeyRedisDB            = "redis_db"
	KeyRedisKeyPrefix     = "redis_key_prefix"
	KeyRedisTTL           = "redis_ttl"
	KeyMasterKey          = "master_key"
	KeyMasterKeyPath      = "master_key_path"
	KeyPersistAccessToken = "persist_access_token"
	KeyCoalesceRefresh    = "coalesce_refresh"
	KeyRefreshBuffer      = "refresh_buffer"
	KeyRateLimitRequests  = "rate_limit_requests"
	KeyRateLimitWindow    = "rate_limit_window"
	KeyRateLimitBurst     = "rate_limit_burst"
	KeyEnv                = "env"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
	KeyFakeAddr           = "fake_addr"
	KeyFakeUser           = "fake_user"
	KeyFakePassword       = "fake_password"
	KeyFakeRotateRefresh  = "fake_rotate_refresh"
	KeyFakeAccessTTL      = "fake_access_ttl"
)

type Config struct {
	BaseURL string        // Backend API root (default: http://127.0.0.1:8000/api)
	Timeout time.Duration // Per-attempt timeout (default: 30s)

	Store     string // Credential store: memory, sqlite, redis (default: sqlite)
	StorePath string // SQLite file (default: <user config dir>/autocheck/credentials.db)
	Redis     redis.Config

	MasterKey          string // Optional: key material for sealing stored credentials
	MasterKeyPath      string // Key file created on first use when MasterKey is empty
	PersistAccessToken bool   // Also keep the access token in the durable store (default: false)

	CoalesceRefresh bool          // Share one refresh among concurrent calls (default: true)
	RefreshBuffer   time.Duration // Proactive refresh margin, negative disables (default: 30s)

	RateLimit httpx.RateLimitConfig // Outbound pacing, zero disables

	Env       string // Environment (dev, prod) (default: prod)
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)

	Fake FakeConfig
}

// FakeConfig configures `autocheck serve-fake`.
type FakeConfig struct {
	Addr          string
	User          string
	Password      string
	RotateRefresh bool
	AccessTTL     time.Duration
}

// DefaultDir is where local state lives unless configured otherwise.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".autocheck"
	}
	return filepath.Join(dir, "autocheck")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	dir := DefaultDir()

	v.SetDefault(KeyEnvFile, ".env")
	v.SetDefault(KeyBaseURL, "http://127.0.0.1:8000/api")
	v.SetDefault(KeyTimeout, apisdk.DefaultTimeout)
	v.SetDefault(KeyStore, StoreSQLite)
	v.SetDefault(KeyStorePath, filepath.Join(dir, "credentials.db"))
	v.SetDefault(KeyRedisAddr, "127.0.0.1:6379")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyRedisKeyPrefix, redis.DefaultKeyPrefix)
	v.SetDefault(KeyRedisTTL, 0)
	v.SetDefault(KeyMasterKeyPath, filepath.Join(dir, "master.key"))
	v.SetDefault(KeyPersistAccessToken, false)
	v.SetDefault(KeyCoalesceRefresh, true)
	v.SetDefault(KeyRefreshBuffer, apisdk.DefaultRefreshBuffer)
	v.SetDefault(KeyRateLimitRequests, 0)
	v.SetDefault(KeyRateLimitWindow, time.Second)
	v.SetDefault(KeyRateLimitBurst, 0)
	v.SetDefault(KeyEnv, "prod")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyFakeAddr, "127.0.0.1:8000")
	v.SetDefault(KeyFakeUser, "demo")
	v.SetDefault(KeyFakePassword, "demo-password")
	v.SetDefault(KeyFakeRotateRefresh, false)
	v.SetDefault(KeyFakeAccessTTL, 60*time.Minute)
}

// LoadConfig resolves the configuration from, in increasing precedence:
// defaults, the config file, a .env file, the environment and bound flags.
func LoadConfig(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	// Environment lookups are lazy, so variables from the env file are seen.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := loadEnvFile(v.GetString(KeyEnvFile)); err != nil {
		return Config{}, err
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		BaseURL:   strings.TrimSuffix(v.GetString(KeyBaseURL), "/"),
		Timeout:   v.GetDuration(KeyTimeout),
		Store:     strings.ToLower(v.GetString(KeyStore)),
		StorePath: v.GetString(KeyStorePath),
		Redis: redis.Config{
			Addr:      v.GetString(KeyRedisAddr),
			Password:  v.GetString(KeyRedisPassword),
			DB:        v.GetInt(KeyRedisDB),
			KeyPrefix: v.GetString(KeyRedisKeyPrefix),
			TTL:       v.GetDuration(KeyRedisTTL),
		},
		MasterKey:          v.GetString(KeyMasterKey),
		MasterKeyPath:      v.GetString(KeyMasterKeyPath),
		PersistAccessToken: v.GetBool(KeyPersistAccessToken),
		CoalesceRefresh:    v.GetBool(KeyCoalesceRefresh),
		RefreshBuffer:      v.GetDuration(KeyRefreshBuffer),
		RateLimit: httpx.RateLimitConfig{
			RequestsPerWindow: v.GetInt(KeyRateLimitRequests),
			Window:            v.GetDuration(KeyRateLimitWindow),
			Burst:             v.GetInt(KeyRateLimitBurst),
		},
		Env:       v.GetString(KeyEnv),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
		Fake: FakeConfig{
			Addr:          v.GetString(KeyFakeAddr),
			User:          v.GetString(KeyFakeUser),
			Password:      v.GetString(KeyFakePassword),
			RotateRefresh: v.GetBool(KeyFakeRotateRefresh),
			AccessTTL:     v.GetDuration(KeyFakeAccessTTL),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadEnvFile loads KEY=value pairs into the process environment. Variables
// already set win, and a missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: want an absolute http(s) URL", KeyBaseURL, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid %s %s: must be positive", KeyTimeout, c.Timeout)
	}

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("%s is required for the sqlite store", KeyStorePath)
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%s is required for the redis store", KeyRedisAddr)
		}
	default:
		return fmt.Errorf("unknown %s %q (want memory, sqlite or redis)", KeyStore, c.Store)
	}

	if c.Store != StoreMemory && c.MasterKey == "" && c.MasterKeyPath == "" {
		return fmt.Errorf("%s or %s is required for a durable store", KeyMasterKey, KeyMasterKeyPath)
	}

	if c.RateLimit.RequestsPerWindow < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	return nil
}

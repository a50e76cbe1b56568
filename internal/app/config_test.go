package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/autocheck/internal/app"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set(app.KeyEnvFile, filepath.Join(t.TempDir(), "missing.env"))
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := app.LoadConfig(newViper(t))
	require.NoError(t, err)

	require.Equal(t, "http://127.0.0.1:8000/api", cfg.BaseURL)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, app.StoreSQLite, cfg.Store)
	require.Equal(t, filepath.Join(app.DefaultDir(), "credentials.db"), cfg.StorePath)
	require.Equal(t, filepath.Join(app.DefaultDir(), "master.key"), cfg.MasterKeyPath)
	require.False(t, cfg.PersistAccessToken)
	require.True(t, cfg.CoalesceRefresh)
	require.Equal(t, 30*time.Second, cfg.RefreshBuffer)
	require.False(t, cfg.RateLimit.Enabled())
	require.Equal(t, "autocheck:", cfg.Redis.KeyPrefix)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, "127.0.0.1:8000", cfg.Fake.Addr)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("AUTOCHECK_BASE_URL", "https://tracker.example.com/api/")
	t.Setenv("AUTOCHECK_TIMEOUT", "5s")
	t.Setenv("AUTOCHECK_STORE", "Redis")
	t.Setenv("AUTOCHECK_REDIS_ADDR", "cache:6379")
	t.Setenv("AUTOCHECK_REDIS_DB", "3")
	t.Setenv("AUTOCHECK_COALESCE_REFRESH", "false")
	t.Setenv("AUTOCHECK_RATE_LIMIT_REQUESTS", "10")

	cfg, err := app.LoadConfig(newViper(t))
	require.NoError(t, err)

	require.Equal(t, "https://tracker.example.com/api", cfg.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, app.StoreRedis, cfg.Store)
	require.Equal(t, "cache:6379", cfg.Redis.Addr)
	require.Equal(t, 3, cfg.Redis.DB)
	require.False(t, cfg.CoalesceRefresh)
	require.True(t, cfg.RateLimit.Enabled())
	require.Equal(t, time.Second, cfg.RateLimit.Window)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autocheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: http://10.0.0.5:8000/api
store: memory
refresh_buffer: -1s
persist_access_token: true
log_format: json
`), 0o600))

	v := newViper(t)
	v.Set(app.KeyConfigFile, path)

	cfg, err := app.LoadConfig(v)
	require.NoError(t, err)

	require.Equal(t, "http://10.0.0.5:8000/api", cfg.BaseURL)
	require.Equal(t, app.StoreMemory, cfg.Store)
	require.Equal(t, -time.Second, cfg.RefreshBuffer)
	require.True(t, cfg.PersistAccessToken)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigMissingFile(t *testing.T) {
	v := newViper(t)
	v.Set(app.KeyConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := app.LoadConfig(v)
	require.Error(t, err)
}

func TestLoadConfigEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AUTOCHECK_FAKE_USER=dotenv-user\n"), 0o600))

	// godotenv writes straight into the process environment.
	t.Cleanup(func() { _ = os.Unsetenv("AUTOCHECK_FAKE_USER") })

	v := viper.New()
	v.Set(app.KeyEnvFile, path)

	cfg, err := app.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, "dotenv-user", cfg.Fake.User)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	t.Setenv("AUTOCHECK_BASE_URL", "http://from-env/api")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("base-url", "", "")
	require.NoError(t, fs.Parse([]string{"--base-url", "http://from-flag/api"}))

	v := newViper(t)
	require.NoError(t, v.BindPFlag(app.KeyBaseURL, fs.Lookup("base-url")))

	cfg, err := app.LoadConfig(v)
	require.NoError(t, err)
	require.Equal(t, "http://from-flag/api", cfg.BaseURL)
}

func TestConfigValidate(t *testing.T) {
	valid := func() app.Config {
		return app.Config{
			BaseURL:       "http://127.0.0.1:8000/api",
			Timeout:       time.Second,
			Store:         app.StoreSQLite,
			StorePath:     "creds.db",
			MasterKeyPath: "master.key",
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(*app.Config){
		"relative base url": func(c *app.Config) { c.BaseURL = "/api" },
		"ftp base url":      func(c *app.Config) { c.BaseURL = "ftp://host/api" },
		"zero timeout":      func(c *app.Config) { c.Timeout = 0 },
		"unknown store":     func(c *app.Config) { c.Store = "etcd" },
		"sqlite no path":    func(c *app.Config) { c.StorePath = "" },
		"redis no addr":     func(c *app.Config) { c.Store = app.StoreRedis },
		"no key material":   func(c *app.Config) { c.MasterKeyPath = "" },
		"negative rate":     func(c *app.Config) { c.RateLimit.RequestsPerWindow = -1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	t.Run("memory needs no key material", func(t *testing.T) {
		cfg := valid()
		cfg.Store = app.StoreMemory
		cfg.MasterKeyPath = ""
		require.NoError(t, cfg.Validate())
	})
}

package app_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/autocheck/internal/app"
	"github.com/aussiebroadwan/autocheck/internal/fakebackend"
	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/aussiebroadwan/autocheck/pkg/credstore"
	"github.com/aussiebroadwan/autocheck/pkg/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
	"github.com/stretchr/testify/require"
)

var demo = app.FakeConfig{
	Addr:      "127.0.0.1:0",
	User:      "demo",
	Password:  "demo-password",
	AccessTTL: time.Hour,
}

// startBackend serves the backend double and returns its API root.
func startBackend(t *testing.T) string {
	t.Helper()

	backend, err := app.NewFakeBackend(demo, slogx.Discard())
	require.NoError(t, err)

	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)
	return ts.URL + fakebackend.BasePath
}

func testConfig(t *testing.T, baseURL string) app.Config {
	t.Helper()
	dir := t.TempDir()

	return app.Config{
		BaseURL:         baseURL,
		Timeout:         5 * time.Second,
		Store:           app.StoreSQLite,
		StorePath:       filepath.Join(dir, "credentials.db"),
		MasterKeyPath:   filepath.Join(dir, "master.key"),
		CoalesceRefresh: true,
		RefreshBuffer:   apisdk.DefaultRefreshBuffer,
		Env:             "test",
		LogLevel:        "error",
	}
}

func newApp(t *testing.T, cfg app.Config) *app.Application {
	t.Helper()

	a, err := app.New(context.Background(), cfg, os.Stderr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestMemoryStore(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1/api")
	cfg.Store = app.StoreMemory

	a := newApp(t, cfg)
	require.IsType(t, &credstore.Memory{}, a.Store())
	require.NoFileExists(t, cfg.MasterKeyPath)

	session, err := a.Session(context.Background())
	require.NoError(t, err)
	require.False(t, session.Authenticated())
}

func TestSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, startBackend(t))

	first := newApp(t, cfg)
	session, err := first.Session(ctx)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(ctx, demo.User, demo.Password))
	refresh := session.Credential().RefreshToken
	require.NoError(t, first.Close())

	require.FileExists(t, cfg.MasterKeyPath)

	// At rest the refresh token is sealed and the access token absent.
	db, err := sqlite.Open(cfg.StorePath)
	require.NoError(t, err)
	raw, err := db.Get(ctx, credstore.KeyRefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, refresh, raw)
	_, err = db.Get(ctx, credstore.KeyAccessToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)
	require.NoError(t, db.Close())

	second := newApp(t, cfg)
	restored, err := second.Session(ctx)
	require.NoError(t, err)
	require.True(t, restored.Authenticated())
	require.Equal(t, demo.User, restored.Username())
	require.Equal(t, refresh, restored.Credential().RefreshToken)
	require.Empty(t, restored.Credential().AccessToken)

	user, err := restored.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, demo.User, user.Username)
	require.NotEmpty(t, restored.Credential().AccessToken)
}

func TestPersistAccessToken(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, startBackend(t))
	cfg.PersistAccessToken = true
	cfg.MasterKey = "configured key material"

	first := newApp(t, cfg)
	session, err := first.Session(ctx)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(ctx, demo.User, demo.Password))
	access := session.Credential().AccessToken
	require.NoError(t, first.Close())

	require.NoFileExists(t, cfg.MasterKeyPath, "configured key material is used as is")

	second := newApp(t, cfg)
	restored, err := second.Session(ctx)
	require.NoError(t, err)
	require.Equal(t, access, restored.Credential().AccessToken)
}

func TestWrongMasterKeyCannotRestore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, startBackend(t))
	cfg.MasterKey = "first key"

	first := newApp(t, cfg)
	session, err := first.Session(ctx)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(ctx, demo.User, demo.Password))
	require.NoError(t, first.Close())

	cfg.MasterKey = "second key"
	second := newApp(t, cfg)
	_, err = second.Session(ctx)
	require.Error(t, err)
}

func TestLogoutClearsDurableStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, startBackend(t))

	a := newApp(t, cfg)
	session, err := a.Session(ctx)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(ctx, demo.User, demo.Password))
	require.NoError(t, session.Logout(ctx))
	require.NoError(t, a.Close())

	again := newApp(t, cfg)
	restored, err := again.Session(ctx)
	require.NoError(t, err)
	require.False(t, restored.Authenticated())
}

func TestServeFake(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- app.ServeFake(ctx, demo, slogx.Discard(), func(baseURL string) { ready <- baseURL })
	}()

	var baseURL string
	select {
	case baseURL = <-ready:
	case err := <-done:
		t.Fatalf("serve-fake exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve-fake did not start")
	}

	client := apisdk.NewSDKClient(baseURL, apisdk.WithLogger(slogx.Discard()))
	session, err := client.NewSession(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(ctx, demo.User, demo.Password))

	brands, err := session.ListBrands(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brands.Results)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve-fake did not stop")
	}
}

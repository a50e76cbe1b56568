package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/aussiebroadwan/autocheck/pkg/credstore"
	"github.com/aussiebroadwan/autocheck/pkg/credstore/drivers/redis"
	"github.com/aussiebroadwan/autocheck/pkg/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/autocheck/pkg/cryptox"
	"github.com/aussiebroadwan/autocheck/pkg/httpx"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
)

const (
	ServiceName = "autocheck"

	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the wired client-side dependencies: logger, credential
// store and API client. Sessions are created on demand.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store   credstore.Store
	durable io.Closer

	client *apisdk.SDKClient
}

// New wires an Application from cfg. Log records go to logOutput (stderr when
// nil).
func New(ctx context.Context, cfg Config, logOutput io.Writer) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: ServiceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  logOutput,
		}),
	}

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}
	app.initClient()

	return app, nil
}

// initStore builds the credential store. Durable backends are always sealed
// and only see the keys listed by durableKeys.
func (app *Application) initStore(ctx context.Context) error {
	if app.cfg.Store == StoreMemory {
		app.store = credstore.NewMemory()
		return nil
	}

	sealer, err := app.sealer()
	if err != nil {
		return err
	}

	var durable credstore.Store
	switch app.cfg.Store {
	case StoreSQLite:
		db, err := sqlite.Open(app.cfg.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		durable, app.durable = db, db
		app.logger.Debug("sqlite credential store ready", "path", app.cfg.StorePath)

	case StoreRedis:
		rdb, err := redis.Open(ctx, app.cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		durable, app.durable = rdb, rdb
		app.logger.Debug("redis credential store ready", "addr", app.cfg.Redis.Addr)

	default:
		return fmt.Errorf("unknown store %q", app.cfg.Store)
	}

	app.store = credstore.NewSplit(
		credstore.NewMemory(),
		credstore.NewSealed(durable, sealer),
		app.durableKeys()...,
	)
	return nil
}

func (app *Application) durableKeys() []string {
	keys := []string{credstore.KeyRefreshToken, credstore.KeyUsername}
	if app.cfg.PersistAccessToken {
		keys = append(keys, credstore.KeyAccessToken)
	}
	return keys
}

func (app *Application) sealer() (*cryptox.Sealer, error) {
	material := []byte(app.cfg.MasterKey)
	if len(material) == 0 {
		var err error
		material, err = cryptox.LoadOrCreateKeyFile(app.cfg.MasterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key: %w", err)
		}
	}

	sealer, err := cryptox.NewSealer(material)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise credential sealing: %w", err)
	}
	return sealer, nil
}

// initClient builds the API client with request logging and, when configured,
// outbound pacing.
func (app *Application) initClient() {
	app.client = apisdk.NewSDKClient(app.cfg.BaseURL,
		apisdk.WithTimeout(app.cfg.Timeout),
		apisdk.WithLogger(app.logger),
		apisdk.WithTransport(func(next http.RoundTripper) http.RoundTripper {
			return slogx.Transport(next, app.logger)
		}),
		apisdk.WithTransport(func(next http.RoundTripper) http.RoundTripper {
			return httpx.RateLimitedTransport(next, app.cfg.RateLimit)
		}),
	)
}

// Session restores the session held by the configured store.
func (app *Application) Session(ctx context.Context, opts ...apisdk.SessionOption) (*apisdk.Session, error) {
	opts = append([]apisdk.SessionOption{
		apisdk.WithCoalescedRefresh(app.cfg.CoalesceRefresh),
		apisdk.WithRefreshBuffer(app.cfg.RefreshBuffer),
	}, opts...)

	session, err := app.client.NewSession(ctx, app.store, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return session, nil
}

func (app *Application) Config() Config            { return app.cfg }
func (app *Application) Logger() *slog.Logger      { return app.logger }
func (app *Application) Store() credstore.Store    { return app.store }
func (app *Application) Client() *apisdk.SDKClient { return app.client }

// Close releases the durable store.
func (app *Application) Close() error {
	if app.durable == nil {
		return nil
	}
	err := app.durable.Close()
	app.durable = nil
	if err != nil {
		return fmt.Errorf("failed to close credential store: %w", err)
	}
	return nil
}

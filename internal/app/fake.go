package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aussiebroadwan/autocheck/internal/fakebackend"
)

// ShutdownGracePeriod bounds how long ServeFake waits for open requests.
const ShutdownGracePeriod = 5 * time.Second

// NewFakeBackend builds the backend double described by cfg, with its demo
// user and reference data in place.
func NewFakeBackend(cfg FakeConfig, logger *slog.Logger) (*fakebackend.Server, error) {
	srv, err := fakebackend.New(
		fakebackend.WithLogger(logger),
		fakebackend.WithAccessTTL(cfg.AccessTTL),
		fakebackend.WithRotateRefresh(cfg.RotateRefresh),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fake backend: %w", err)
	}

	if _, err := srv.AddUser(cfg.User, cfg.Password, fakebackend.WithName("Demo", "User")); err != nil {
		return nil, fmt.Errorf("failed to add demo user: %w", err)
	}
	srv.SeedReferenceData()

	return srv, nil
}

// ServeFake runs the backend double on cfg.Addr until ctx is cancelled.
// ready, when set, receives the API root once the listener is up.
func ServeFake(ctx context.Context, cfg FakeConfig, logger *slog.Logger, ready func(baseURL string)) error {
	backend, err := NewFakeBackend(cfg, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	server := &http.Server{
		Handler:           backend,
		ReadHeaderTimeout: 10 * time.Second,
	}

	baseURL := "http://" + ln.Addr().String() + fakebackend.BasePath
	logger.Info("fake backend starting", "url", baseURL, "user", cfg.User)
	if ready != nil {
		ready(baseURL)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down fake backend...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGracePeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful server shutdown failed", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("error closing server", "error", err)
		}
		return err
	}

	logger.Info("fake backend stopped")
	return nil
}

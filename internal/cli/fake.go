package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/autocheck/internal/app"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
	"github.com/spf13/cobra"
)

func newServeFakeCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-fake",
		Short: "Run an in-process stand-in for the backend, for demos and local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return err
			}

			logger := slogx.New(slogx.Config{
				Service: app.ServiceName + "-fake",
				Version: app.BuildVersion,
				Env:     cfg.Env,
				Level:   cfg.LogLevel,
				Format:  cfg.LogFormat,
				Output:  rt.stderr,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return app.ServeFake(ctx, cfg.Fake, logger, func(baseURL string) {
				fmt.Fprintf(rt.stdout, "fake backend listening on %s\n", baseURL)
				fmt.Fprintf(rt.stdout, "sign in with: autocheck --base-url %s login -u %s\n", baseURL, cfg.Fake.User)
			})
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "Listen address (default 127.0.0.1:8000)")
	flags.String("user", "", "Demo username")
	flags.String("password", "", "Demo password")
	flags.Bool("rotate-refresh", false, "Rotate refresh tokens on every refresh")
	flags.Duration("access-ttl", 0, "Access token lifetime")

	bind := map[string]string{
		app.KeyFakeAddr:          "addr",
		app.KeyFakeUser:          "user",
		app.KeyFakePassword:      "password",
		app.KeyFakeRotateRefresh: "rotate-refresh",
		app.KeyFakeAccessTTL:     "access-ttl",
	}
	for key, flag := range bind {
		_ = rt.v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

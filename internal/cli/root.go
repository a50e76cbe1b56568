// Package cli is the autocheck command tree. Commands talk to the backend
// through an apisdk.Session restored from the configured credential store and
// render what comes back as tables or JSON.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aussiebroadwan/autocheck/internal/app"
	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ExpiredMessage is printed when the session cannot be refreshed.
const ExpiredMessage = "session expired, please log in again"

// runtime is shared by every command of one invocation.
type runtime struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	json bool

	cfg *app.Config
	app *app.Application
}

func (rt *runtime) config() (app.Config, error) {
	if rt.cfg != nil {
		return *rt.cfg, nil
	}
	cfg, err := app.LoadConfig(rt.v)
	if err != nil {
		return app.Config{}, err
	}
	rt.cfg = &cfg
	return cfg, nil
}

func (rt *runtime) application(ctx context.Context) (*app.Application, error) {
	if rt.app != nil {
		return rt.app, nil
	}
	cfg, err := rt.config()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, rt.stderr)
	if err != nil {
		return nil, err
	}
	rt.app = a
	return a, nil
}

// session restores the stored session and reports expiry on stderr.
func (rt *runtime) session(ctx context.Context) (*apisdk.Session, error) {
	a, err := rt.application(ctx)
	if err != nil {
		return nil, err
	}
	return a.Session(ctx, apisdk.WithExpiredHandler(func(error) {
		fmt.Fprintln(rt.stderr, ExpiredMessage)
	}))
}

// authed is session for commands that make no sense signed out.
func (rt *runtime) authed(ctx context.Context) (*apisdk.Session, error) {
	s, err := rt.session(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Authenticated() {
		return nil, ErrNotSignedIn
	}
	return s, nil
}

func (rt *runtime) close() error {
	if rt.app == nil {
		return nil
	}
	return rt.app.Close()
}

// ErrNotSignedIn is returned by commands that need a session when none is
// stored.
var ErrNotSignedIn = errors.New("not signed in, run `autocheck login` first")

// NewRootCmd builds the command tree around v. Output goes to stdout, logs
// and diagnostics to stderr. The returned cleanup releases the credential
// store and must run after the command finished.
func NewRootCmd(v *viper.Viper, stdin io.Reader, stdout, stderr io.Writer) (*cobra.Command, func() error) {
	rt := &runtime{v: v, stdin: stdin, stdout: stdout, stderr: stderr}
	return newRootCmd(rt), rt.close
}

func newRootCmd(rt *runtime) *cobra.Command {
	v := rt.v

	root := &cobra.Command{
		Use:           "autocheck",
		Short:         "Vehicle service tracker client",
		Long:          "Track cars and their maintenance work against the vehicle-service tracker backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(rt.stdin)
	root.SetOut(rt.stdout)
	root.SetErr(rt.stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "Configuration file (YAML)")
	flags.String("base-url", "", "Backend API root, e.g. http://127.0.0.1:8000/api")
	flags.String("store", "", "Credential store: memory, sqlite or redis")
	flags.String("store-path", "", "SQLite credential file")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Duration("timeout", 0, "Per-request timeout")
	flags.BoolVar(&rt.json, "json", false, "Print JSON instead of tables")

	bind := map[string]string{
		app.KeyConfigFile: "config",
		app.KeyBaseURL:    "base-url",
		app.KeyStore:      "store",
		app.KeyStorePath:  "store-path",
		app.KeyLogLevel:   "log-level",
		app.KeyTimeout:    "timeout",
	}
	for key, flag := range bind {
		// Lookup cannot fail for flags defined above.
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newSignupCmd(rt),
		newLoginCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newProfileCmd(rt),
		newCarsCmd(rt),
		newBrandsCmd(rt),
		newModelsCmd(rt),
		newServicesCmd(rt),
		newServeFakeCmd(rt),
	)

	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, cleanup := NewRootCmd(viper.New(), stdin, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := cleanup(); cerr != nil {
		fmt.Fprintln(stderr, "warning:", cerr)
	}
	if err == nil {
		return 0
	}

	// The expired handler already told the user.
	if !errors.Is(err, apisdk.ErrSessionExpired) {
		fmt.Fprintln(stderr, "error:", err)
	}
	return 1
}

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/spf13/cobra"
)

// PasswordEnv is read by login when --password is not given.
const PasswordEnv = "AUTOCHECK_PASSWORD"

func newLoginCmd(rt *runtime) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: "Sign in with a username and password. The password is taken from --password, " +
			"then $" + PasswordEnv + ", then the first line of stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			secret, err := resolvePassword(rt, password)
			if err != nil {
				return err
			}

			session, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.SignIn(cmd.Context(), username, secret); err != nil {
				return err
			}

			fmt.Fprintf(rt.stdout, "signed in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prefer $"+PasswordEnv+")")
	return cmd
}

func newSignupCmd(rt *runtime) *cobra.Command {
	var (
		req      apisdk.SignUpRequest
		password string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in as it",
		Long: "Create an account. The password is taken like login's: --password, " +
			"then $" + PasswordEnv + ", then the first line of stdin.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Username == "" {
				return errors.New("--username is required")
			}
			if req.Email == "" {
				return errors.New("--email is required")
			}
			secret, err := resolvePassword(rt, password)
			if err != nil {
				return err
			}
			req.Password, req.RepeatPassword = secret, secret

			session, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			user, err := session.SignUp(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, user)
			}

			fmt.Fprintf(rt.stdout, "signed up and signed in as %s\n", user.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prefer $"+PasswordEnv+")")
	return cmd
}

// resolvePassword picks the flag value, then $AUTOCHECK_PASSWORD, then a line
// from stdin.
func resolvePassword(rt *runtime, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}
	return readLine(rt)
}

func readLine(rt *runtime) (string, error) {
	fmt.Fprint(rt.stderr, "Password: ")
	line, err := bufio.NewReader(rt.stdin).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(rt.stdout, "signed out")
			return nil
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			user, err := session.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, user)
			}

			t := newTable(rt.stdout, "ID", "USERNAME", "EMAIL", "NAME", "UNITS")
			name := strings.TrimSpace(user.Name + " " + user.LastName)
			t.row(itoa(user.ID), user.Username, user.Email, name, user.DistanceUnits)
			return t.flush()
		},
	}
}

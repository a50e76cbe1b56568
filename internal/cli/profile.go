package cli

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/spf13/cobra"
)

func newProfileCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			user, err := session.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, user)
			}

			born := "-"
			if user.DateBirth != nil {
				born = *user.DateBirth
			}
			t := newTable(rt.stdout, "NAME", "LAST NAME", "COUNTRY", "BORN", "CURRENCY", "UNITS")
			t.row(user.Name, user.LastName, user.Country, born, user.Currency, user.DistanceUnits)
			return t.flush()
		},
	}
	cmd.AddCommand(newProfileSetCmd(rt))
	return cmd
}

func newProfileSetCmd(rt *runtime) *cobra.Command {
	var name, lastName, country, born string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change profile fields; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req apisdk.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("last-name") {
				req.LastName = &lastName
			}
			if flags.Changed("country") {
				req.Country = &country
			}
			if flags.Changed("date-birth") {
				req.DateBirth = &born
			}
			if req == (apisdk.ProfileUpdate{}) {
				return errors.New("nothing to change, pass at least one flag")
			}

			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := session.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, profile)
			}
			fmt.Fprintln(rt.stdout, "profile updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&country, "country", "", "Country")
	cmd.Flags().StringVar(&born, "date-birth", "", "Date of birth, YYYY-MM-DD")
	return cmd
}

package cli

import (
	"fmt"
	"strings"

	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/spf13/cobra"
)

func newServicesCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"svc"},
		Short:   "Track maintenance work per car",
	}
	cmd.AddCommand(
		newServicesListCmd(rt),
		newServicesAddCmd(rt),
		newServicesStatusCmd(rt),
		newServicesRmCmd(rt),
	)
	return cmd
}

func newServicesListCmd(rt *runtime) *cobra.Command {
	var car int64

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the service records of a car, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			services, err := session.ListServices(cmd.Context(), car)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, services.Results)
			}
			if len(services.Results) == 0 {
				fmt.Fprintln(rt.stdout, "no service records for this car")
				return nil
			}

			t := newTable(rt.stdout, "ID", "DATE", "STATUS", "HOURS", "WORK")
			for _, s := range services.Results {
				t.row(itoa(s.ID), s.ScheduledDate, string(s.Status), s.Hours, s.WorkDescription)
			}
			return t.flush()
		},
	}

	cmd.Flags().Int64Var(&car, "car", 0, "Car ID")
	_ = cmd.MarkFlagRequired("car")
	return cmd
}

func newServicesAddCmd(rt *runtime) *cobra.Command {
	var (
		req    apisdk.CreateServiceRequest
		status string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record planned or finished maintenance work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			req.Status = apisdk.ServiceStatus(status)
			svc, err := session.CreateService(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, svc)
			}
			fmt.Fprintf(rt.stdout, "added service %d (%s)\n", svc.ID, svc.Status)
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.Car, "car", 0, "Car ID")
	cmd.Flags().StringVar(&req.WorkDescription, "description", "", "Work to be done")
	cmd.Flags().StringVar(&req.Hours, "hours", "", "Labour hours, e.g. 1.5")
	cmd.Flags().StringVar(&req.ScheduledDate, "date", "", "Scheduled date, YYYY-MM-DD")
	cmd.Flags().StringVar(&status, "status", "", "Status: "+statusList()+" (default pending)")
	for _, name := range []string{"car", "description", "hours", "date"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newServicesStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Change the status of a service record (" + statusList() + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("service", args[0])
			if err != nil {
				return err
			}
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			// The backend validates the value.
			svc, err := session.UpdateServiceStatus(cmd.Context(), id, apisdk.ServiceStatus(args[1]))
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, svc)
			}
			fmt.Fprintf(rt.stdout, "service %d is now %s\n", id, args[1])
			return nil
		},
	}
}

func newServicesRmCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Remove a service record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("service", args[0])
			if err != nil {
				return err
			}
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.DeleteService(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(rt.stdout, "removed service %d\n", id)
			return nil
		},
	}
}

func statusList() string {
	names := make([]string, 0, len(apisdk.ServiceStatuses))
	for _, s := range apisdk.ServiceStatuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

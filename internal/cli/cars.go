package cli

import (
	"fmt"

	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/spf13/cobra"
)

func newCarsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cars",
		Short: "List, add and remove cars",
	}
	cmd.AddCommand(newCarsListCmd(rt), newCarsAddCmd(rt), newCarsRmCmd(rt))
	return cmd
}

func newCarsListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your cars",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			cars, err := session.ListCars(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, cars.Results)
			}
			if len(cars.Results) == 0 {
				fmt.Fprintln(rt.stdout, "no cars yet, add one with `autocheck cars add`")
				return nil
			}

			t := newTable(rt.stdout, "ID", "BRAND", "MODEL", "MILEAGE", "UPDATED")
			for _, c := range cars.Results {
				t.row(itoa(c.ID), c.Brand, c.Model, itoa(c.Mileage), formatTime(c.UpdatedMileageAt))
			}
			return t.flush()
		},
	}
}

func newCarsAddCmd(rt *runtime) *cobra.Command {
	var req apisdk.CreateCarRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a car (see `autocheck brands` and `autocheck models`)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("initial-mileage") {
				req.InitialMileage = req.Mileage
			}

			car, err := session.CreateCar(cmd.Context(), req)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, car)
			}
			fmt.Fprintf(rt.stdout, "added car %d\n", car.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.CarBrand, "brand", 0, "Brand ID")
	cmd.Flags().Int64Var(&req.CarModel, "model", 0, "Model ID")
	cmd.Flags().Int64Var(&req.Mileage, "mileage", 0, "Current mileage")
	cmd.Flags().Int64Var(&req.InitialMileage, "initial-mileage", 0, "Mileage at purchase (defaults to --mileage)")
	_ = cmd.MarkFlagRequired("brand")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func newCarsRmCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Remove a car and its service records",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("car", args[0])
			if err != nil {
				return err
			}
			session, err := rt.authed(cmd.Context())
			if err != nil {
				return err
			}
			if err := session.DeleteCar(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(rt.stdout, "removed car %d\n", id)
			return nil
		},
	}
}

func newBrandsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "brands",
		Short: "List car brands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}

			brands, err := session.ListBrands(cmd.Context())
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, brands.Results)
			}

			t := newTable(rt.stdout, "ID", "BRAND")
			for _, b := range brands.Results {
				t.row(itoa(b.ID), b.Title)
			}
			return t.flush()
		},
	}
}

func newModelsCmd(rt *runtime) *cobra.Command {
	var brand int64

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models of a brand",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}

			models, err := session.ListModels(cmd.Context(), brand)
			if err != nil {
				return err
			}
			if rt.json {
				return writeJSON(rt.stdout, models.Results)
			}

			t := newTable(rt.stdout, "ID", "MODEL")
			for _, m := range models.Results {
				t.row(itoa(m.ID), m.Title)
			}
			return t.flush()
		},
	}

	cmd.Flags().Int64Var(&brand, "brand", 0, "Brand ID")
	_ = cmd.MarkFlagRequired("brand")
	return cmd
}

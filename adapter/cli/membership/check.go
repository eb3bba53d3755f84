package membership

import (
	"fmt"
	"strconv"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <module>",
	Short: "Check whether the user may open a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, ok := requireApp(cmd)
		if !ok {
			return nil
		}

		module, err := domain.ParseModule(args[0])
		if err != nil {
			return err
		}

		d, err := app.Membership.CheckModule(cmd.Context(), userID, module)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if d.Allowed() {
			fmt.Fprintf(out, "✓ %s is available on the %s plan\n", module, d.Plan)
			return nil
		}
		printDenial(out, app.Membership.Catalog(cmd.Context()), d)
		return nil
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume <resource> [amount]",
	Short: "Check whether the user may consume more of a resource",
	Long: `Asks whether adding amount (default 1) of a resource stays within the plan.
Resources: employees, payrollRuns, storageMb.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, ok := requireApp(cmd)
		if !ok {
			return nil
		}

		resource, err := domain.ParseResource(args[0])
		if err != nil {
			return err
		}
		delta := 1.0
		if len(args) == 2 {
			delta, err = strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
		}

		d, err := app.Membership.CanConsume(cmd.Context(), userID, resource, delta)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !d.Allowed() {
			printDenial(out, app.Membership.Catalog(cmd.Context()), d)
			return nil
		}
		if d.Limit.IsUnlimited() {
			fmt.Fprintf(out, "✓ %s: unlimited on the %s plan\n", resource.Label(), d.Plan)
			return nil
		}
		fmt.Fprintf(out, "✓ %s: %v + %v within limit %s (%v left after)\n",
			resource.Label(), d.Current, delta, d.Limit, d.Remaining()-delta)
		return nil
	},
}

package membership

import (
	"fmt"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <plan>",
	Short: "Move the user to a plan and activate it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changePlan(cmd, args[0])
	},
}

var downgradeCmd = &cobra.Command{
	Use:   "downgrade <plan>",
	Short: "Move the user to a cheaper plan",
	Long: `Moves the user to a cheaper plan. Usage above the new limits is kept;
further consumption is denied until usage drops or the user upgrades.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return changePlan(cmd, args[0])
	},
}

func changePlan(cmd *cobra.Command, target string) error {
	app, userID, ok := requireApp(cmd)
	if !ok {
		return nil
	}

	planID, err := domain.ParsePlanID(target)
	if err != nil {
		return err
	}

	sub, err := app.Membership.Upgrade(cmd.Context(), userID, planID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	plan, err := app.Membership.Catalog(cmd.Context()).GetPlan(sub.PlanID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s is now on the %s plan (%s/month)\n", userID, plan.DisplayName, cli.FormatPrice(plan.MonthlyPrice))

	for _, r := range domain.AllResources {
		limit := plan.Limit(r)
		if used := sub.UsageOf(r); !limit.Allows(used) {
			fmt.Fprintf(out, "  ⚠ %s usage %v exceeds the new limit %s\n", r.Label(), used, limit)
		}
	}
	return nil
}

var setStatusCmd = &cobra.Command{
	Use:   "set-status <active|past_due|canceled>",
	Short: "Change the subscription status without changing plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, ok := requireApp(cmd)
		if !ok {
			return nil
		}

		status, err := domain.ParseSubscriptionStatus(args[0])
		if err != nil {
			return err
		}

		sub, err := app.Membership.ChangeStatus(cmd.Context(), userID, status)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s subscription is now %s (plan %s)\n", userID, sub.Status, sub.PlanID)
		return nil
	},
}

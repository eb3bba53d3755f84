package membership

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/application/uisync"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show plan, usage and modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, ok := requireApp(cmd)
		if !ok {
			return nil
		}

		sub, err := app.Membership.GetSubscription(cmd.Context(), userID)
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "No subscription found for %s. Run: axyra membership signin\n", userID)
			return nil
		}
		if err != nil {
			return err
		}

		view, err := uisync.BuildView(app.Membership.Evaluator(cmd.Context()), sub)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		fmt.Fprintf(out, "User:    %s\n", view.UserID)
		fmt.Fprintf(out, "Plan:    %s (%s)\n", view.PlanName, view.Status)
		if view.EffectivePlan != view.Plan {
			fmt.Fprintf(out, "Limits:  %s, subscription is not active\n", view.EffectivePlan)
		}
		if !sub.CurrentPeriodEnd.IsZero() {
			fmt.Fprintf(out, "Period:  ends %s\n", sub.CurrentPeriodEnd.Local().Format("2006-01-02"))
		}
		if !sub.UsageUpdatedAt.IsZero() {
			fmt.Fprintf(out, "Usage as of %s\n", sub.UsageUpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintln(out)

		for _, bar := range view.Bars {
			marker := ""
			if bar.Warning {
				marker = "  ⚠"
			}
			if bar.Unlimited {
				fmt.Fprintf(out, "  %-24s %s %v / %s%s\n", bar.Label, progressBar(0, 20), bar.Used, bar.Limit, marker)
				continue
			}
			fmt.Fprintf(out, "  %-24s %s %v / %s (%.0f%%)%s\n", bar.Label, progressBar(bar.Percent, 20), bar.Used, bar.Limit, bar.Percent, marker)
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "Modules: %d available, %d locked\n", len(view.VisibleModules), len(view.LockedModules))
		for _, m := range view.VisibleModules {
			fmt.Fprintf(out, "  ✓ %s\n", m)
		}
		for _, l := range view.LockedModules {
			fmt.Fprintf(out, "  ✗ %s (needs %s)\n", l.Module, l.UpgradeTo)
		}

		if view.Upgrade != nil {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s (%s/month)\n", view.Upgrade.Message, cli.FormatPrice(view.Upgrade.MonthlyPrice))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the view as JSON")
}

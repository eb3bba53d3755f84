package membership

import (
	"encoding/json"
	"fmt"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count subscriptions by status and plan",
	Long: `Count every stored subscription by status and plan.

Expired counts paid subscriptions whose billing period has ended, whether or
not the worker has moved them to past_due or canceled yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Membership == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Membership commands require database connection.")
			return nil
		}

		stats, err := app.Membership.SubscriptionStats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Fprintf(out, "Subscriptions: %d\n", stats.Total)
		fmt.Fprintf(out, "  %-10s %d\n", domain.SubscriptionActive, stats.Active)
		fmt.Fprintf(out, "  %-10s %d\n", domain.SubscriptionPastDue, stats.PastDue)
		fmt.Fprintf(out, "  %-10s %d\n", domain.SubscriptionCanceled, stats.Canceled)
		fmt.Fprintf(out, "  %-10s %d\n", "expired", stats.Expired)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "By plan:")
		for _, id := range domain.AllPlanIDs {
			fmt.Fprintf(out, "  %-14s %d\n", id, stats.ByPlan[id])
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the counts as JSON")
}

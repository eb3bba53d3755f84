package membership

import (
	"fmt"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

var refreshAll bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recount usage from the document store",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if refreshAll {
			if app == nil || app.Membership == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Membership commands require database connection.")
				return nil
			}
			n, err := app.Membership.RefreshAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed usage for %d users\n", n)
			return err
		}

		app, userID, ok := requireApp(cmd)
		if !ok {
			return nil
		}

		sub, snapshot, err := app.Membership.RefreshUsage(cmd.Context(), userID)
		if err != nil {
			return err
		}

		failed := make(map[domain.Resource]bool, len(snapshot.Failed))
		for _, r := range snapshot.Failed {
			failed[r] = true
		}

		out := cmd.OutOrStdout()
		for _, r := range domain.AllResources {
			if failed[r] {
				fmt.Fprintf(out, "  %-24s unavailable, kept %v\n", r.Label(), sub.UsageOf(r))
				continue
			}
			fmt.Fprintf(out, "  %-24s %v\n", r.Label(), snapshot.Usage[r])
		}
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshAll, "all", false, "refresh every known user")
}

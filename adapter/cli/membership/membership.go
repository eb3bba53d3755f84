package membership

import (
	"fmt"
	"io"
	"strings"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

// Cmd is the membership command group.
var Cmd = &cobra.Command{
	Use:     "membership",
	Aliases: []string{"m"},
	Short:   "Inspect and change a user's membership",
	Long: `Show plan, usage and entitlements for a user and change their plan.

Commands act on the configured operator user unless --user is given.`,
}

var userFlag string

func init() {
	Cmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "user id (defaults to AXYRA_USER_ID)")

	Cmd.AddCommand(signInCmd)
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(checkCmd)
	Cmd.AddCommand(consumeCmd)
	Cmd.AddCommand(upgradeCmd)
	Cmd.AddCommand(downgradeCmd)
	Cmd.AddCommand(setStatusCmd)
	Cmd.AddCommand(refreshCmd)
	Cmd.AddCommand(statsCmd)
}

// requireApp returns the app and the target user, or prints why it cannot run.
func requireApp(cmd *cobra.Command) (*cli.App, string, bool) {
	app := cli.GetApp()
	if app == nil || app.Membership == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Membership commands require database connection.")
		return nil, "", false
	}
	userID := app.UserOrDefault(userFlag)
	if userID == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No user selected. Pass --user or set AXYRA_USER_ID.")
		return nil, "", false
	}
	return app, userID, true
}

// printDenial writes a denied decision as a soft message with the upgrade offer.
func printDenial(out io.Writer, catalog *domain.Catalog, d domain.Decision) {
	fmt.Fprintf(out, "✗ %s\n", d.Reason)
	if d.UpgradeTo == "" {
		return
	}
	plan, err := catalog.GetPlan(d.UpgradeTo)
	if err != nil {
		return
	}
	fmt.Fprintf(out, "  Upgrade to %s (%s/month) to continue: axyra membership upgrade %s\n",
		plan.DisplayName, cli.FormatPrice(plan.MonthlyPrice), plan.ID)
}

// progressBar renders pct (0-100) as a fixed width bar.
func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

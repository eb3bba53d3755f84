package membership

import (
	"fmt"

	"github.com/spf13/cobra"
)

var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Ensure the user has a subscription",
	Long:  `Creates a free, active subscription on first sign-in. Existing subscriptions are left as they are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, userID, ok := requireApp(cmd)
		if !ok {
			return nil
		}

		sub, err := app.Membership.SignIn(cmd.Context(), userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in %s on the %s plan (%s)\n", sub.UserID, sub.PlanID, sub.Status)
		return nil
	},
}

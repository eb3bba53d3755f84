package plans

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/spf13/cobra"
)

// Cmd is the plans command group.
var Cmd = &cobra.Command{
	Use:   "plans",
	Short: "Show and configure the plan catalog",
}

var (
	overridesFile string
	listJSON      bool
)

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(overrideCmd)
	Cmd.AddCommand(resetCmd)

	listCmd.Flags().BoolVar(&listJSON, "json", false, "print plans as JSON")
	overrideCmd.Flags().StringVarP(&overridesFile, "file", "f", "", "JSON file with plan overrides")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans from cheapest to most expensive",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Membership == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Plan listing requires database connection.")
			return nil
		}

		plans := app.Membership.ListPlans(cmd.Context())
		out := cmd.OutOrStdout()
		if listJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(plans)
		}

		fmt.Fprintf(out, "%-14s %12s %10s %12s %12s\n", "PLAN", "PRICE", "EMPLOYEES", "PAYROLL/MO", "STORAGE MB")
		for _, p := range plans {
			fmt.Fprintf(out, "%-14s %12s %10s %12s %12s\n",
				p.ID,
				cli.FormatPrice(p.MonthlyPrice),
				p.Limit(domain.ResourceEmployees),
				p.Limit(domain.ResourcePayrollRuns),
				p.Limit(domain.ResourceStorageMB),
			)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <plan>",
	Short: "Show limits and modules of a plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Membership == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Plan details require database connection.")
			return nil
		}

		id, err := domain.ParsePlanID(args[0])
		if err != nil {
			return err
		}
		plan, err := app.Membership.Catalog(cmd.Context()).GetPlan(id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s/month)\n", plan.DisplayName, cli.FormatPrice(plan.MonthlyPrice))
		fmt.Fprintln(out, "Limits:")
		for _, r := range domain.AllResources {
			fmt.Fprintf(out, "  %-24s %s\n", r.Label(), plan.Limit(r))
		}
		modules := make([]string, 0, len(plan.Modules))
		for _, m := range plan.Modules {
			modules = append(modules, string(m))
		}
		fmt.Fprintf(out, "Modules: %s\n", strings.Join(modules, ", "))
		return nil
	},
}

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Apply plan overrides from a JSON file",
	Long: `Applies and persists catalog overrides. The file maps plan ids to partial
plans, for example:

  {"free": {"limits": {"employees": 8}}, "basic": {"monthlyPrice": 60000}}

A limit of -1 means unlimited.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if overridesFile == "" {
			return fmt.Errorf("--file is required")
		}
		app := cli.GetApp()
		if app == nil || app.Membership == nil {
			return fmt.Errorf("plan overrides require database connection")
		}

		raw, err := os.ReadFile(overridesFile)
		if err != nil {
			return err
		}
		var overrides domain.CatalogOverrides
		if err := json.Unmarshal(raw, &overrides); err != nil {
			return fmt.Errorf("invalid overrides file: %w", err)
		}

		if err := app.Membership.SaveCatalogOverrides(cmd.Context(), overrides); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Applied overrides for %d plans\n", len(overrides))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove plan overrides and restore the built-in catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Membership == nil {
			return fmt.Errorf("plan overrides require database connection")
		}
		if err := app.Membership.ResetCatalogOverrides(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Restored built-in plans")
		return nil
	},
}

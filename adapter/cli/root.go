package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/axyra/membership/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  *slog.Logger
)

type timerKey struct{}

var rootCmd = &cobra.Command{
	Use:   "axyra",
	Short: "AXYRA membership - plans, usage limits and entitlements",
	Long: `axyra manages the membership plan of AXYRA accounts.

It shows plan limits and usage, answers entitlement questions
(may this user open a module, add an employee, run payroll),
and changes plans and subscription status.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = observability.ServiceLogger("axyra", "debug", false)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = observability.WithCorrelationID(ctx, uuid.NewString())
		timer := observability.StartTimer("cli " + cmd.CommandPath()).WithLogger(Logger().With(
			"correlation_id", observability.CorrelationIDFromContext(ctx),
		))
		cmd.SetContext(context.WithValue(ctx, timerKey{}, timer))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if timer, ok := cmd.Context().Value(timerKey{}).(*observability.Timer); ok {
			timer.Stop()
		}
	},
}

// ExecuteContext runs the root command with ctx, exiting non-zero on error.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the CLI logger, falling back to slog.Default.
func Logger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

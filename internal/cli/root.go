package cli

import (
	"context"

	"github.com/andy/billable/internal/app"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the top-level "billable" command and registers all
// subcommands against the provided App.
func NewRootCmd(a *app.App) *cobra.Command {
	root := &cobra.Command{
		Use:   "billable",
		Short: "Time tracking and invoicing for freelancers",
		Long: `Billable tracks time and expenses per client and turns unbilled work into invoices.

By default, running billable without arguments launches the interactive picker.
Use subcommands for CLI operations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return launchTUI(cmd, a, 0)
		},
	}

	root.AddCommand(
		newClientsCmd(a),
		newProjectsCmd(a),
		newProductsCmd(a),
		newSettingsCmd(a),
		newEntriesCmd(a),
		newExpensesCmd(a),
		newInvoicesCmd(a),
		newTimerCmd(a),
		newResetCmd(a),
		newMetricsCmd(a),
		newTUICmd(a),
	)

	return root
}

// ExecuteContext builds the command tree and runs it with os.Args
func ExecuteContext(ctx context.Context, a *app.App) error {
	return NewRootCmd(a).ExecuteContext(ctx)
}

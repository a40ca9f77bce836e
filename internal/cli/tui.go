package cli

import (
	"fmt"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/tui"
	"github.com/spf13/cobra"
)

func newTUICmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [client_id_or_name]",
		Short: "Pick unbilled items and invoice them interactively",
		Long:  `Launch the interactive picker. With a client it opens that client's unbilled items directly.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var clientID int64
			if len(args) == 1 {
				client, err := resolveClient(cmd.Context(), a, args[0])
				if err != nil {
					return fmt.Errorf("failed to resolve client: %w", err)
				}
				clientID = client.ID
			}
			return launchTUI(cmd, a, clientID)
		},
	}
}

func launchTUI(cmd *cobra.Command, a *app.App, clientID int64) error {
	return tui.Run(cmd.Context(), tui.Deps{
		Clients:  a.Stores.Clients,
		Unbilled: a.UnbilledService,
		Invoices: a.InvoiceService,
	}, clientID)
}

func newMetricsCmd(a *app.App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.Config.Metrics.Addr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on http://%s/metrics\n", addr)
			return a.Metrics.Serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to the configured one)")
	return cmd
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/db"
	"github.com/spf13/cobra"
)

// Order matters due to foreign keys
var (
	invoiceTables = []string{"invoice_time_entries", "invoice_expenses", "invoices"}
	itemTables    = []string{"time_entries", "expenses"}
	catalogTables = []string{"projects", "clients", "products", "settings"}
)

const clearStamps = "SET invoiced_date = NULL, invoice_sent_date = NULL, paid_date = NULL, version = version + 1"

func newResetCmd(a *app.App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset data in the database",
		Long: `Reset data in the database.

Examples:
  billable reset invoices   # Delete all invoices and make their items unbilled again
  billable reset entries    # Delete all time entries, expenses and invoices
  billable reset all        # Wipe everything`,
	}
	cmd.PersistentFlags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	sub := func(use, short, prompt, done string, statements []string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				if !yes && !confirmPrompt(cmd.InOrStdin(), out, prompt) {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
				if err := execAll(cmd.Context(), a, statements); err != nil {
					return err
				}
				fmt.Fprintln(out, done)
				return nil
			},
		}
	}

	cmd.AddCommand(
		sub("invoices", "Delete all invoices and release their items",
			"This will delete ALL invoices and mark every item unbilled. Continue?",
			"All invoices have been deleted and their items released.",
			append([]string{
				"UPDATE time_entries " + clearStamps,
				"UPDATE expenses " + clearStamps,
			}, deletes(invoiceTables)...)),
		sub("entries", "Delete all time entries, expenses and invoices",
			"This will delete ALL time entries, expenses and invoices. Continue?",
			"All time entries, expenses and invoices have been deleted.",
			deletes(invoiceTables, itemTables)),
		sub("all", "Delete ALL data",
			"This will delete ALL data (clients, catalog, entries, invoices, everything). Continue?",
			"All data has been deleted.",
			deletes(invoiceTables, itemTables, catalogTables)),
	)
	return cmd
}

func deletes(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		for _, table := range g {
			out = append(out, "DELETE FROM "+table)
		}
	}
	return out
}

func execAll(ctx context.Context, a *app.App, statements []string) error {
	return a.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
}

func confirmPrompt(in io.Reader, out io.Writer, message string) bool {
	fmt.Fprintf(out, "%s [y/N] ", message)
	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

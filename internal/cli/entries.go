package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/importer"
	"github.com/andy/billable/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newEntriesCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Manage time entries",
		Long:  `List, add and import time entries.`,
	}
	cmd.AddCommand(newEntriesListCmd(a), newEntriesAddCmd(a), newEntriesImportCmd(a))
	return cmd
}

func billingStatus(s domain.BillingStamps) string {
	switch {
	case s.PaidDate != nil:
		return "Paid"
	case s.InvoiceSentDate != nil:
		return "Sent"
	case s.IsInvoiced():
		return "Invoiced"
	default:
		return "Unbilled"
	}
}

func newEntriesListCmd(a *app.App) *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List time entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var clientID *int64
			if client != "" {
				c, err := resolveClient(ctx, a, client)
				if err != nil {
					return fmt.Errorf("failed to resolve client: %w", err)
				}
				clientID = &c.ID
			}

			entries, err := a.Stores.Entries.List(ctx, clientID)
			if err != nil {
				return fmt.Errorf("failed to list entries: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries found")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-15s %-17s %-8s %-30s %-9s\n", "ID", "Client", "Start", "Hours", "Description", "Status")
			fmt.Fprintln(out, rule)

			total := decimal.Zero
			for _, entry := range entries {
				hours := entry.Hours().StringFixed(2)
				if entry.IsRunning() {
					hours = "running"
				}
				fmt.Fprintf(out, "%-5d %-15s %-17s %-8s %-30s %-9s\n",
					entry.ID,
					truncate(clientName(ctx, a, entry.ClientID), 15),
					entry.StartTime.Local().Format("2006-01-02 15:04"),
					hours,
					truncate(entry.Description, 30),
					billingStatus(entry.BillingStamps),
				)
				total = total.Add(entry.Hours())
			}
			fmt.Fprintln(out, rule)
			fmt.Fprintf(out, "Total: %d entries, %s hours\n", len(entries), total.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "Filter by client ID or name")
	return cmd
}

func newEntriesAddCmd(a *app.App) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "add [client_id_or_name] [start_time] [end_time] [description]",
		Short: "Add a time entry manually",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}

			var projectID *int64
			if project != "" {
				p, err := resolveProject(ctx, a, client.ID, project)
				if err != nil {
					return fmt.Errorf("failed to resolve project: %w", err)
				}
				projectID = &p.ID
			}

			start, err := parseDateTime(args[1])
			if err != nil {
				return fmt.Errorf("invalid start time: %w", err)
			}
			end, err := parseDateTime(args[2])
			if err != nil {
				return fmt.Errorf("invalid end time: %w", err)
			}

			description := ""
			if len(args) > 3 {
				description = args[3]
			}

			entry := domain.NewTimeEntry(client.ID, projectID, description, start)
			entry.UserID = a.Config.User.Name
			entry.Stop(end)
			if err := entry.Validate(); err != nil {
				return fmt.Errorf("invalid entry: %w", err)
			}
			if err := a.Stores.Entries.Create(ctx, entry); err != nil {
				return fmt.Errorf("failed to create entry: %w", err)
			}

			out := cmd.OutOrStdout()
			success(out, "Time entry created (ID: %d)", entry.ID)
			fmt.Fprintf(out, "  Client: %s\n", client.Name)
			fmt.Fprintf(out, "  Duration: %s (%s h)\n", formatDuration(entry.Duration(time.Now())), entry.Hours().StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project ID or name")
	return cmd
}

func newEntriesImportCmd(a *app.App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import [file.csv]",
		Short: "Import time entries from a CSV time sheet",
		Long: `Import time entries from a CSV file with a header row.

Required columns: client, start, end. Optional: project, description.
Rows that cannot be parsed are reported and skipped; the rest are saved together.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			res, err := importer.Parse(f, importer.NewRepositoryLookup(ctx, a.Stores.Clients, a.Stores.Projects))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			for _, msg := range res.Errors {
				warn(out, "%s", msg)
			}

			if dryRun || len(res.Entries) == 0 {
				fmt.Fprintf(out, "%d entries parsed, nothing saved\n", len(res.Entries))
				return nil
			}

			err = a.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
				entries := repository.NewStores(tx).Entries
				for _, entry := range res.Entries {
					entry.UserID = a.Config.User.Name
					if err := entries.Create(ctx, entry); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to save imported entries: %w", err)
			}

			a.Logger.Info("time entries imported", "batch_id", res.BatchID, "saved", len(res.Entries), "rejected", len(res.Errors))
			success(out, "Imported %d entries (batch %s)", len(res.Entries), res.BatchID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and report without saving")
	return cmd
}

func newExpensesCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Manage billable expenses",
	}
	cmd.AddCommand(newExpensesListCmd(a), newExpensesAddCmd(a))
	return cmd
}

func newExpensesListCmd(a *app.App) *cobra.Command {
	var client string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var clientID *int64
			if client != "" {
				c, err := resolveClient(ctx, a, client)
				if err != nil {
					return fmt.Errorf("failed to resolve client: %w", err)
				}
				clientID = &c.ID
			}

			expenses, err := a.Stores.Expenses.List(ctx, clientID)
			if err != nil {
				return fmt.Errorf("failed to list expenses: %w", err)
			}
			if len(expenses) == 0 {
				fmt.Fprintln(out, "No expenses found")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-15s %-30s %-5s %-10s %-10s %-9s\n", "ID", "Client", "Description", "Qty", "Unit", "Total", "Status")
			fmt.Fprintln(out, rule)
			for _, x := range expenses {
				fmt.Fprintf(out, "%-5d %-15s %-30s %-5d %-10s %-10s %-9s\n",
					x.ID,
					truncate(clientName(ctx, a, x.ClientID), 15),
					truncate(x.Description, 30),
					x.Quantity,
					money(x.UnitAmount),
					money(x.TotalAmount),
					billingStatus(x.BillingStamps),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "Filter by client ID or name")
	return cmd
}

func newExpensesAddCmd(a *app.App) *cobra.Command {
	var (
		quantity    int64
		amount      string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add [client_id_or_name] [product_sku]",
		Short: "Record an expense against a catalog product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}
			product, err := a.Stores.Products.GetBySKU(ctx, args[1])
			if err != nil {
				return fmt.Errorf("failed to resolve product: %w", err)
			}

			unit := product.UnitPrice
			if amount != "" {
				if unit, err = parseMoney(amount); err != nil {
					return err
				}
			}
			if description == "" {
				description = product.Description
			}

			expense := domain.NewExpense(client.ID, product.ID, description, unit, quantity)
			if err := expense.Validate(); err != nil {
				return fmt.Errorf("invalid expense: %w", err)
			}
			if err := a.Stores.Expenses.Create(ctx, expense); err != nil {
				return fmt.Errorf("failed to create expense: %w", err)
			}

			success(cmd.OutOrStdout(), "Expense created (ID: %d): %d x %s = %s",
				expense.ID, expense.Quantity, money(expense.UnitAmount), money(expense.TotalAmount))
			return nil
		},
	}

	cmd.Flags().Int64Var(&quantity, "qty", 1, "Quantity")
	cmd.Flags().StringVar(&amount, "amount", "", "Unit amount (defaults to the product price)")
	cmd.Flags().StringVar(&description, "description", "", "Description (defaults to the product's)")
	return cmd
}

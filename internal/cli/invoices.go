package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/mailer"
	"github.com/andy/billable/internal/service"
	"github.com/spf13/cobra"
)

func newInvoicesCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Manage invoices",
		Long:  `Create invoices from unbilled work and move them through their lifecycle.`,
	}
	cmd.AddCommand(
		newInvoicesUnbilledCmd(a),
		newInvoicesCreateCmd(a),
		newInvoicesListCmd(a),
		newInvoicesShowCmd(a),
		newInvoicesSendCmd(a),
		newInvoiceTransitionCmd("mark-paid", "Mark an invoice as paid", "marked as paid",
			func(ctx context.Context, id int64) error { return a.InvoiceService.MarkInvoicePaid(ctx, id) }),
		newInvoiceTransitionCmd("void", "Void a draft or sent invoice", "voided",
			func(ctx context.Context, id int64) error { return a.InvoiceService.VoidInvoice(ctx, id) }),
		newInvoiceTransitionCmd("delete", "Delete an invoice and release its items", "deleted",
			func(ctx context.Context, id int64) error { return a.InvoiceService.DeleteInvoice(ctx, id) }),
		newInvoicesPDFCmd(a),
	)
	return cmd
}

func printUnbilled(w io.Writer, items *service.UnbilledItems) {
	if items.IsEmpty() {
		fmt.Fprintln(w, "Nothing to invoice")
		return
	}

	if len(items.TimeEntries) > 0 {
		fmt.Fprintln(w, "Time entries:")
		fmt.Fprintf(w, "%-5s %-12s %-32s %-7s %-10s %-10s %-10s\n", "ID", "Date", "Description", "Hours", "Rate", "Source", "Total")
		fmt.Fprintln(w, rule)
		for _, te := range items.TimeEntries {
			hours := te.Entry.Hours().StringFixed(2)
			if te.Entry.IsRunning() {
				hours = "running"
			}
			fmt.Fprintf(w, "%-5d %-12s %-32s %-7s %-10s %-10s %-10s\n",
				te.Entry.ID,
				te.Entry.StartTime.Local().Format("2006-01-02"),
				truncate(te.Entry.Description, 32),
				hours,
				money(te.Rate),
				te.RateSource,
				money(te.Total),
			)
		}
		fmt.Fprintln(w)
	}

	if len(items.Expenses) > 0 {
		fmt.Fprintln(w, "Expenses:")
		fmt.Fprintf(w, "%-5s %-40s %-5s %-10s %-10s\n", "ID", "Description", "Qty", "Unit", "Total")
		fmt.Fprintln(w, rule)
		for _, x := range items.Expenses {
			fmt.Fprintf(w, "%-5d %-40s %-5d %-10s %-10s\n",
				x.Expense.ID,
				truncate(x.Expense.Description, 40),
				x.Expense.Quantity,
				money(x.Expense.UnitAmount),
				money(x.Total),
			)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Unbilled total: %s\n", money(items.Total()))
}

func newInvoicesUnbilledCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "unbilled [client_id_or_name]",
		Short: "Show what a client can be invoiced for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}
			items, err := a.UnbilledService.GetUnbilledItems(ctx, client.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unbilled for %s\n\n", client.Name)
			printUnbilled(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

func newInvoicesCreateCmd(a *app.App) *cobra.Command {
	var (
		entries  string
		expenses string
		all      bool
		status   string
	)

	cmd := &cobra.Command{
		Use:   "create [client_id_or_name]",
		Short: "Create an invoice from unbilled items",
		Long: `Create an invoice from a selection of the client's unbilled items.

Pass --entries and --expenses with comma separated IDs, or --all to take
every stopped time entry and expense that is currently unbilled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}

			req := service.CreateInvoiceRequest{ClientID: client.ID}
			if req.TimeEntryIDs, err = parseIDList(entries, "time entry"); err != nil {
				return err
			}
			if req.ExpenseIDs, err = parseIDList(expenses, "expense"); err != nil {
				return err
			}
			if status != "" {
				if req.Status, err = domain.ParseInvoiceStatus(status); err != nil {
					return err
				}
			}

			if all {
				items, err := a.UnbilledService.GetUnbilledItems(ctx, client.ID)
				if err != nil {
					return err
				}
				for _, te := range items.TimeEntries {
					if !te.Entry.IsRunning() {
						req.TimeEntryIDs = append(req.TimeEntryIDs, te.Entry.ID)
					}
				}
				for _, x := range items.Expenses {
					req.ExpenseIDs = append(req.ExpenseIDs, x.Expense.ID)
				}
			}

			inv, err := a.InvoiceService.CreateInvoice(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			success(out, "Invoice created: %s (ID: %d)", inv.Number, inv.ID)
			fmt.Fprintf(out, "  Client: %s\n", client.Name)
			fmt.Fprintf(out, "  Items: %d time entries, %d expenses\n", len(inv.TimeEntries), len(inv.Expenses))
			fmt.Fprintf(out, "  Total: %s\n", money(inv.TotalAmount))
			fmt.Fprintf(out, "  Status: %s\n", inv.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&entries, "entries", "", "Time entry IDs, comma separated")
	cmd.Flags().StringVar(&expenses, "expenses", "", "Expense IDs, comma separated")
	cmd.Flags().BoolVar(&all, "all", false, "Include every unbilled item")
	cmd.Flags().StringVar(&status, "status", "", "Initial status: draft, sent or paid")
	return cmd
}

func newInvoicesListCmd(a *app.App) *cobra.Command {
	var client, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
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
			var st *domain.InvoiceStatus
			if status != "" {
				s, err := domain.ParseInvoiceStatus(status)
				if err != nil {
					return err
				}
				st = &s
			}

			invoices, err := a.InvoiceService.ListInvoices(ctx, clientID, st)
			if err != nil {
				return fmt.Errorf("failed to list invoices: %w", err)
			}
			if len(invoices) == 0 {
				fmt.Fprintln(out, "No invoices found")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-15s %-20s %-12s %-12s %-8s\n", "ID", "Number", "Client", "Date", "Total", "Status")
			fmt.Fprintln(out, rule)
			for _, inv := range invoices {
				fmt.Fprintf(out, "%-5d %-15s %-20s %-12s %-12s %-8s\n",
					inv.ID,
					inv.Number,
					truncate(clientName(ctx, a, inv.ClientID), 20),
					inv.InvoiceDate.Format("2006-01-02"),
					money(inv.TotalAmount),
					inv.Status,
				)
			}
			fmt.Fprintf(out, "\nTotal: %d invoice(s)\n", len(invoices))
			return nil
		},
	}

	cmd.Flags().StringVar(&client, "client", "", "Filter by client ID or name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (draft, sent, paid, void)")
	return cmd
}

func newInvoicesShowCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show invoice details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			inv, err := a.InvoiceService.GetInvoice(ctx, id)
			if err != nil {
				return err
			}
			entries, err := a.Stores.Entries.ListByInvoice(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load time entries: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Repeat("=", 80))
			fmt.Fprintf(out, "Invoice: %s\n", inv.Number)
			fmt.Fprintln(out, strings.Repeat("=", 80))
			fmt.Fprintf(out, "Client: %s\n", clientName(ctx, a, inv.ClientID))
			fmt.Fprintf(out, "Date:   %s\n", inv.InvoiceDate.Format("2006-01-02"))
			fmt.Fprintf(out, "Status: %s\n", inv.Status)
			fmt.Fprintf(out, "Sent:   %s\n", formatDate(inv.InvoiceSentDate))
			fmt.Fprintf(out, "Paid:   %s\n", formatDate(inv.PaidDate))
			fmt.Fprintln(out)

			if len(entries) > 0 {
				fmt.Fprintf(out, "%-12s %-40s %-8s %-8s %s\n", "Date", "Description", "Hours", "Rate", "Amount")
				fmt.Fprintln(out, rule)
				for _, e := range entries {
					rate, _ := e.StoredRate()
					fmt.Fprintf(out, "%-12s %-40s %-8s %-8s %s\n",
						e.StartTime.Local().Format("2006-01-02"),
						truncate(e.Description, 40),
						e.Hours().StringFixed(2),
						money(rate),
						money(e.Amount(rate)),
					)
				}
			}
			for _, x := range inv.Expenses {
				fmt.Fprintf(out, "%-12s %-40s %-8d %-8s %s\n",
					x.ProductInvoiceDate.Format("2006-01-02"),
					truncate(x.Description, 40),
					x.Quantity,
					money(x.UnitAmount),
					money(x.Total()),
				)
			}

			fmt.Fprintln(out, strings.Repeat("=", 80))
			fmt.Fprintf(out, "Total: %s\n", money(inv.TotalAmount))
			return nil
		},
	}
}

// savePDF writes a rendered document into dir and returns its path
func savePDF(dir string, doc service.Rendered) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, doc.FileName)
	if err := os.WriteFile(path, doc.PDF, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func newInvoicesSendCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "send [id]",
		Short: "Send a draft invoice by email",
		Long: `Mark a draft invoice as sent and email it to the client.

The PDF is always written to the invoice output directory, so it can be
delivered by hand when email is disabled or fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			res, err := a.InvoiceService.SendInvoice(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			path, err := savePDF(a.Config.Invoice.OutputDir, res.Rendered)
			if err != nil {
				return fmt.Errorf("invoice %s was sent but the PDF could not be saved: %w", res.Invoice.Number, err)
			}

			success(out, "Invoice %s marked as sent", res.Invoice.Number)
			switch {
			case res.Emailed:
				fmt.Fprintln(out, "  Emailed to the client")
			case errors.Is(res.EmailError, mailer.ErrDisabled):
				warn(out, "Email is not configured; deliver the PDF yourself")
			case errors.Is(res.EmailError, service.ErrNoRecipient):
				warn(out, "Client has no email address; deliver the PDF yourself")
			case res.EmailError != nil:
				warn(out, "Email failed: %v", res.EmailError)
			}
			fmt.Fprintf(out, "  PDF: %s\n", path)
			return nil
		},
	}
}

func newInvoiceTransitionCmd(use, short, done string, apply func(context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			if err := apply(cmd.Context(), id); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Invoice #%d %s", id, done)
			return nil
		},
	}
}

func newInvoicesPDFCmd(a *app.App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "pdf [id]",
		Short: "Write an invoice PDF without changing its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "invoice")
			if err != nil {
				return err
			}
			doc, err := a.InvoiceService.RenderInvoice(cmd.Context(), id)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.Config.Invoice.OutputDir
			}
			path, err := savePDF(dir, *doc)
			if err != nil {
				return fmt.Errorf("failed to save PDF: %w", err)
			}
			success(cmd.OutOrStdout(), "PDF written to %s", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "out", "", "Output directory (defaults to the configured one)")
	return cmd
}

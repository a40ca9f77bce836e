package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/domain"
	"github.com/spf13/cobra"
)

func newProductsCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage the expense catalog",
	}
	cmd.AddCommand(newProductsListCmd(a), newProductsAddCmd(a))
	return cmd
}

func newProductsListCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			products, err := a.Stores.Products.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list products: %w", err)
			}
			if len(products) == 0 {
				fmt.Fprintln(out, "No products found")
				return nil
			}

			today := domain.DateOf(time.Now())
			fmt.Fprintf(out, "%-5s %-12s %-30s %-12s %-10s %-12s\n", "ID", "SKU", "Description", "Price", "Recurs", "Next Bill")
			fmt.Fprintln(out, rule)
			for _, p := range products {
				next := "-"
				if d, ok := p.Recurrence.NextDate(today); ok {
					next = d.Format("2006-01-02")
				}
				fmt.Fprintf(out, "%-5d %-12s %-30s %-12s %-10s %-12s\n",
					p.ID,
					truncate(p.SKU, 12),
					truncate(p.Description, 30),
					money(p.UnitPrice),
					p.Recurrence,
					next,
				)
			}
			return nil
		},
	}
}

func newProductsAddCmd(a *app.App) *cobra.Command {
	var price, recurs string

	cmd := &cobra.Command{
		Use:   "add [sku] [description]",
		Short: "Add a catalog product",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseMoney(price)
			if err != nil {
				return err
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}

			product := domain.NewProduct(args[0], description, p)
			if product.Recurrence, err = domain.ParseRecurrence(recurs); err != nil {
				return err
			}
			if err := product.Validate(); err != nil {
				return fmt.Errorf("invalid product: %w", err)
			}
			if err := a.Stores.Products.Create(cmd.Context(), product); err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}

			success(cmd.OutOrStdout(), "Product created: %s (ID: %d)", product, product.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&price, "price", "0", "Unit price")
	cmd.Flags().StringVar(&recurs, "recurrence", "none", "Billing cadence: none, monthly or yearly")
	return cmd
}

func newSettingsCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change company settings",
	}
	cmd.AddCommand(newSettingsShowCmd(a), newSettingsSetCmd(a))
	return cmd
}

// loadSettings returns the stored settings, or defaults taken from the
// config's user section when none were saved yet.
func loadSettings(cmd *cobra.Command, a *app.App) (*domain.Settings, error) {
	s, err := a.Stores.Settings.Get(cmd.Context())
	if errors.Is(err, domain.ErrNotFound) {
		u := a.Config.User
		return &domain.Settings{CompanyName: u.Name, CompanyEmail: u.Email, CompanyAddress: u.Address}, nil
	}
	return s, err
}

func newSettingsShowCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show company settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, a)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Company:      %s\n", s.CompanyName)
			fmt.Fprintf(out, "Email:        %s\n", s.CompanyEmail)
			fmt.Fprintf(out, "Address:      %s\n", s.CompanyAddress)
			fmt.Fprintf(out, "Default rate: %s\n", money(s.DefaultHourlyRate))
			return nil
		},
	}
}

func newSettingsSetCmd(a *app.App) *cobra.Command {
	var rate, company, email, address string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update company settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, a)
			if err != nil {
				return fmt.Errorf("failed to load settings: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("rate") {
				if s.DefaultHourlyRate, err = parseMoney(rate); err != nil {
					return err
				}
			}
			if flags.Changed("company") {
				s.CompanyName = company
			}
			if flags.Changed("email") {
				s.CompanyEmail = email
			}
			if flags.Changed("address") {
				s.CompanyAddress = address
			}

			if err := a.Stores.Settings.Save(cmd.Context(), s); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Settings saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "", "Fallback hourly rate")
	cmd.Flags().StringVar(&company, "company", "", "Company name printed on invoices")
	cmd.Flags().StringVar(&email, "email", "", "Company email")
	cmd.Flags().StringVar(&address, "address", "", "Company address")
	return cmd
}

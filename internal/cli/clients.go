package cli

import (
	"fmt"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newClientsCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage clients",
		Long:  `List, add and edit clients.`,
	}
	cmd.AddCommand(
		newClientsListCmd(a),
		newClientsAddCmd(a),
		newClientsEditCmd(a),
	)
	return cmd
}

func newClientsListCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			clients, err := a.Stores.Clients.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list clients: %w", err)
			}

			if len(clients) == 0 {
				fmt.Fprintln(out, "No clients found")
				return nil
			}

			fmt.Fprintf(out, "%-5s %-30s %-12s %-30s\n", "ID", "Name", "Hourly Rate", "Email")
			fmt.Fprintln(out, rule)
			for _, client := range clients {
				fmt.Fprintf(out, "%-5d %-30s %-12s %-30s\n",
					client.ID,
					truncate(client.Name, 30),
					money(client.DefaultHourlyRate),
					truncate(client.Email, 30),
				)
			}

			fmt.Fprintf(out, "\nTotal: %d client(s)\n", len(clients))
			return nil
		},
	}
}

func newClientsAddCmd(a *app.App) *cobra.Command {
	var rate, email, cc, bcc string

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a new client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseMoney(rate)
			if err != nil {
				return err
			}

			client := domain.NewClient(args[0], r)
			client.Email = email
			client.CCEmails = domain.ParseEmailList(cc)
			client.BCCEmails = domain.ParseEmailList(bcc)

			if err := client.Validate(); err != nil {
				return fmt.Errorf("invalid client: %w", err)
			}
			if err := a.Stores.Clients.Create(cmd.Context(), client); err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			success(cmd.OutOrStdout(), "Client created: %s (ID: %d)", client.Name, client.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  Hourly Rate: %s\n", money(client.DefaultHourlyRate))
			return nil
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "0", "Default hourly rate")
	cmd.Flags().StringVar(&email, "email", "", "Invoice recipient")
	cmd.Flags().StringVar(&cc, "cc", "", "Comma separated CC addresses")
	cmd.Flags().StringVar(&bcc, "bcc", "", "Comma separated BCC addresses")
	return cmd
}

func newClientsEditCmd(a *app.App) *cobra.Command {
	var name, rate, email, cc, bcc string

	cmd := &cobra.Command{
		Use:   "edit [id_or_name]",
		Short: "Edit an existing client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to get client: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				client.Name = name
			}
			if flags.Changed("rate") {
				if client.DefaultHourlyRate, err = parseMoney(rate); err != nil {
					return err
				}
			}
			if flags.Changed("email") {
				client.Email = email
			}
			if flags.Changed("cc") {
				client.CCEmails = domain.ParseEmailList(cc)
			}
			if flags.Changed("bcc") {
				client.BCCEmails = domain.ParseEmailList(bcc)
			}

			if err := client.Validate(); err != nil {
				return fmt.Errorf("invalid client: %w", err)
			}
			if err := a.Stores.Clients.Update(ctx, client); err != nil {
				return fmt.Errorf("failed to update client: %w", err)
			}

			success(cmd.OutOrStdout(), "Client updated: %s", client.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&rate, "rate", "", "New default hourly rate")
	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&cc, "cc", "", "New CC addresses")
	cmd.Flags().StringVar(&bcc, "bcc", "", "New BCC addresses")
	return cmd
}

func newProjectsCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage client projects",
	}
	cmd.AddCommand(newProjectsListCmd(a), newProjectsAddCmd(a), newProjectsSetRateCmd(a))
	return cmd
}

func newProjectsListCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "list [client]",
		Short: "List a client's projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}
			projects, err := a.Stores.Projects.ListByClient(ctx, client.ID)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			if len(projects) == 0 {
				fmt.Fprintf(out, "No projects for %s\n", client.Name)
				return nil
			}

			fmt.Fprintf(out, "%-5s %-30s %-12s\n", "ID", "Name", "Rate")
			fmt.Fprintln(out, rule)
			for _, p := range projects {
				rate := "client"
				if r, ok := p.RateOverride(); ok {
					rate = money(r)
				}
				fmt.Fprintf(out, "%-5d %-30s %-12s\n", p.ID, truncate(p.Name, 30), rate)
			}
			return nil
		},
	}
}

func newProjectsAddCmd(a *app.App) *cobra.Command {
	var rate string

	cmd := &cobra.Command{
		Use:   "add [client] [name]",
		Short: "Add a project to a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := resolveClient(ctx, a, args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}

			project := domain.NewProject(client.ID, args[1])
			if rate != "" {
				r, err := parseMoney(rate)
				if err != nil {
					return err
				}
				project.HourlyRate = decimal.NewNullDecimal(r)
			}
			if err := project.Validate(); err != nil {
				return fmt.Errorf("invalid project: %w", err)
			}
			if err := a.Stores.Projects.Create(ctx, project); err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			success(cmd.OutOrStdout(), "Project created: %s (ID: %d) for %s", project.Name, project.ID, client.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "", "Hourly rate overriding the client's (empty or 0 for none)")
	return cmd
}

func newProjectsSetRateCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-rate [project_id] [rate]",
		Short: "Set or clear (0) a project's rate override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], "project")
			if err != nil {
				return err
			}
			r, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			project, err := a.Stores.Projects.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}
			project.HourlyRate = decimal.NewNullDecimal(r)
			if err := project.Validate(); err != nil {
				return fmt.Errorf("invalid project: %w", err)
			}
			if err := a.Stores.Projects.Update(ctx, project); err != nil {
				return fmt.Errorf("failed to update project: %w", err)
			}
			success(cmd.OutOrStdout(), "Project %s rate set to %s", project.Name, money(r))
			return nil
		},
	}
}

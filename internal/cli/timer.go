package cli

import (
	"fmt"
	"time"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/service"
	"github.com/spf13/cobra"
)

func newTimerCmd(a *app.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Manage the running timer",
		Long:  `Start, stop, or check the status of the running timer.`,
	}
	cmd.AddCommand(newTimerStartCmd(a), newTimerStopCmd(a), newTimerStatusCmd(a))
	return cmd
}

func newTimerStartCmd(a *app.App) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "start [client_id_or_name] [description]",
		Short: "Start a new timer",
		Long:  `Start a new timer for a client with an optional description.`,
		Args:  cobra.RangeArgs(1, 2),
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

			description := ""
			if len(args) > 1 {
				description = args[1]
			}

			entry, err := a.TimerService.Start(ctx, client.ID, projectID, description)
			if err != nil {
				return fmt.Errorf("failed to start timer: %w", err)
			}

			out := cmd.OutOrStdout()
			success(out, "Timer started for %s (entry %d)", client.Name, entry.ID)
			if description != "" {
				fmt.Fprintf(out, "  Description: %s\n", description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project ID or name")
	return cmd
}

func newTimerStopCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer and save the time entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			entry, err := a.TimerService.Stop(ctx)
			if err != nil {
				return fmt.Errorf("failed to stop timer: %w", err)
			}

			out := cmd.OutOrStdout()
			success(out, "Timer stopped")
			fmt.Fprintf(out, "  Client: %s\n", clientName(ctx, a, entry.ClientID))
			fmt.Fprintf(out, "  Duration: %s\n", formatDuration(entry.Duration(time.Now())))
			fmt.Fprintf(out, "  Hours: %s\n", entry.Hours().StringFixed(2))
			return nil
		},
	}
}

func newTimerStatusCmd(a *app.App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			entry, err := a.TimerService.Active(ctx)
			if err != nil {
				return fmt.Errorf("failed to get timer state: %w", err)
			}
			if entry == nil {
				fmt.Fprintln(out, "No active timer")
				return nil
			}

			elapsed := entry.Duration(time.Now())
			rates := service.NewRateResolver(a.Stores.Projects, a.Stores.Clients, a.Stores.Settings)
			rate, err := rates.ResolveHourlyRate(ctx, entry.ProjectID, &entry.ClientID)
			if err != nil {
				return fmt.Errorf("failed to resolve rate: %w", err)
			}
			value := rate.Mul(domain.HoursBetween(entry.StartTime, entry.StartTime.Add(elapsed)))

			fmt.Fprintln(out, "Timer Status: running")
			fmt.Fprintf(out, "  Client: %s\n", clientName(ctx, a, entry.ClientID))
			if entry.Description != "" {
				fmt.Fprintf(out, "  Description: %s\n", entry.Description)
			}
			fmt.Fprintf(out, "  Started: %s\n", entry.StartTime.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  Elapsed: %s\n", formatDuration(elapsed))
			fmt.Fprintf(out, "  Current Value: %s\n", money(value))
			return nil
		},
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
)

const rule = "--------------------------------------------------------------------------------"

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

// Describe turns an error into the line shown to the user, prefixed by
// its class so a failed command says whether to fix the input or retry.
func Describe(err error) string {
	var infra *domain.InfrastructureError
	switch {
	case errors.Is(err, domain.ErrConcurrency):
		return "conflict, reload and retry: " + err.Error()
	case errors.As(err, &infra):
		return fmt.Sprintf("internal error during %s: %v", infra.Op, infra.Err)
	case errors.Is(err, domain.ErrValidation):
		return "invalid input: " + err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return "not found: " + err.Error()
	case errors.Is(err, domain.ErrInvalidReference):
		return "invalid reference: " + err.Error()
	case errors.Is(err, domain.ErrInvalidState):
		return "not allowed now: " + err.Error()
	default:
		return err.Error()
	}
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, s)
	}
	return id, nil
}

// parseIDList parses a comma separated list such as "1,2,5".
func parseIDList(s, what string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		id, err := parseID(part, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// resolveClient resolves a client by ID or name
func resolveClient(ctx context.Context, a *app.App, idOrName string) (*domain.Client, error) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		return a.Stores.Clients.GetByID(ctx, id)
	}
	return a.Stores.Clients.GetByName(ctx, idOrName)
}

// resolveProject resolves a project of clientID by ID or name
func resolveProject(ctx context.Context, a *app.App, clientID int64, idOrName string) (*domain.Project, error) {
	var (
		project *domain.Project
		err     error
	)
	if id, perr := strconv.ParseInt(idOrName, 10, 64); perr == nil {
		project, err = a.Stores.Projects.GetByID(ctx, id)
	} else {
		project, err = a.Stores.Projects.GetByName(ctx, clientID, idOrName)
	}
	if err != nil {
		return nil, err
	}
	if project.ClientID != clientID {
		return nil, domain.Invalid("project %d does not belong to client %d", project.ID, clientID)
	}
	return project, nil
}

func clientName(ctx context.Context, a *app.App, id int64) string {
	if c, err := a.Stores.Clients.GetByID(ctx, id); err == nil {
		return c.Name
	}
	return fmt.Sprintf("Client #%d", id)
}

// parseDateTime parses a datetime string in various formats, in local time
func parseDateTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("expected format: YYYY-MM-DD or YYYY-MM-DD HH:MM[:SS]")
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	} else if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

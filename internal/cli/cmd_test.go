package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andy/billable/internal/app"
	"github.com/andy/billable/internal/config"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires a full App over a temp directory with a plain database.
func testApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "billable.db")
	cfg.Invoice.OutputDir = filepath.Join(dir, "invoices")
	cfg.User.Name = "tester"

	a, err := app.NewWithConfig(context.Background(), cfg, app.Options{
		LogOutput: io.Discard,
		Clock:     testutil.FixedClock(testutil.Day),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

// executeCmd runs a cobra command and captures stdout/stderr.
func executeCmd(t *testing.T, a *app.App, args ...string) (string, error) {
	t.Helper()
	return executeCmdWithInput(t, a, "", args...)
}

func executeCmdWithInput(t *testing.T, a *app.App, input string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(a)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(input))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func mustRun(t *testing.T, a *app.App, args ...string) string {
	t.Helper()
	out, err := executeCmd(t, a, args...)
	require.NoError(t, err, "billable %s\n%s", strings.Join(args, " "), out)
	return out
}

func seedAcme(t *testing.T, a *app.App) {
	t.Helper()
	mustRun(t, a, "clients", "add", "Acme", "--rate", "25", "--email", "ap@acme.test")
	mustRun(t, a, "entries", "add", "Acme", "2026-03-10 09:00", "2026-03-10 12:00", "Design review")
	mustRun(t, a, "products", "add", "HOST", "Hosting", "--price", "12.50", "--recurrence", "monthly")
	mustRun(t, a, "expenses", "add", "Acme", "HOST", "--qty", "2")
}

func TestClientsAddAndList(t *testing.T) {
	a := testApp(t)

	out := mustRun(t, a, "clients", "add", "Acme", "--rate", "25", "--cc", "a@acme.test; b@acme.test")
	assert.Contains(t, out, "Client created: Acme (ID: 1)")
	assert.Contains(t, out, "$25.00")

	out = mustRun(t, a, "clients", "list")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Total: 1 client(s)")

	mustRun(t, a, "clients", "edit", "Acme", "--rate", "30")
	client, err := a.Stores.Clients.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, testutil.Dec("30").Equal(client.DefaultHourlyRate))
	assert.Equal(t, []string{"a@acme.test", "b@acme.test"}, client.CCEmails)
}

func TestClientsAdd_Invalid(t *testing.T) {
	a := testApp(t)

	_, err := executeCmd(t, a, "clients", "add", "Acme", "--rate", "-5")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = executeCmd(t, a, "clients", "add", "Acme", "--rate", "lots")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestProjectsAndSettings(t *testing.T) {
	a := testApp(t)
	mustRun(t, a, "clients", "add", "Acme", "--rate", "25")

	out := mustRun(t, a, "projects", "add", "Acme", "Website", "--rate", "50")
	assert.Contains(t, out, "Project created: Website")
	out = mustRun(t, a, "projects", "list", "Acme")
	assert.Contains(t, out, "$50.00")

	out = mustRun(t, a, "settings", "show")
	assert.Contains(t, out, "Company:      tester")

	mustRun(t, a, "settings", "set", "--rate", "40", "--company", "Tester Ltd")
	out = mustRun(t, a, "settings", "show")
	assert.Contains(t, out, "Tester Ltd")
	assert.Contains(t, out, "$40.00")
}

func TestProductsList_ShowsNextBillingDate(t *testing.T) {
	a := testApp(t)
	mustRun(t, a, "products", "add", "HOST", "Hosting", "--price", "12.50", "--recurrence", "monthly")
	mustRun(t, a, "products", "add", "SETUP", "One-off setup", "--price", "100")

	out := mustRun(t, a, "products", "list")
	assert.Contains(t, out, "monthly")
	assert.Contains(t, out, "none")

	_, err := executeCmd(t, a, "products", "add", "X", "--recurrence", "weekly")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInvoiceLifecycle(t *testing.T) {
	a := testApp(t)
	seedAcme(t, a)

	out := mustRun(t, a, "invoices", "unbilled", "Acme")
	assert.Contains(t, out, "Design review")
	assert.Contains(t, out, "$75.00")
	assert.Contains(t, out, "Unbilled total: $100.00")

	out = mustRun(t, a, "invoices", "create", "Acme", "--all")
	assert.Contains(t, out, "Invoice created: INV-2026-001 (ID: 1)")
	assert.Contains(t, out, "Items: 1 time entries, 1 expenses")
	assert.Contains(t, out, "Total: $100.00")

	out = mustRun(t, a, "invoices", "unbilled", "Acme")
	assert.Contains(t, out, "Nothing to invoice")

	out = mustRun(t, a, "invoices", "list", "--status", "draft")
	assert.Contains(t, out, "INV-2026-001")

	out = mustRun(t, a, "invoices", "send", "1")
	assert.Contains(t, out, "Invoice INV-2026-001 marked as sent")
	assert.Contains(t, out, "Email is not configured")
	pdf, err := os.ReadFile(filepath.Join(a.Config.Invoice.OutputDir, "INV-2026-001.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = executeCmd(t, a, "invoices", "send", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	out = mustRun(t, a, "invoices", "show", "1")
	assert.Contains(t, out, "Status: sent")
	assert.Contains(t, out, "Design review")
	assert.Contains(t, out, "Hosting")

	out = mustRun(t, a, "entries", "list", "--client", "Acme")
	assert.Contains(t, out, "Sent")

	mustRun(t, a, "invoices", "mark-paid", "1")
	inv, err := a.InvoiceService.GetInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, inv.Status)

	out = mustRun(t, a, "invoices", "delete", "1")
	assert.Contains(t, out, "Invoice #1 deleted")
	out = mustRun(t, a, "invoices", "unbilled", "Acme")
	assert.Contains(t, out, "Unbilled total: $100.00")
}

func TestInvoicesCreate_Selection(t *testing.T) {
	a := testApp(t)
	seedAcme(t, a)

	out := mustRun(t, a, "invoices", "create", "Acme", "--expenses", "1", "--status", "paid")
	assert.Contains(t, out, "Total: $25.00")
	assert.Contains(t, out, "Status: paid")

	_, err := executeCmd(t, a, "invoices", "create", "Acme")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = executeCmd(t, a, "invoices", "create", "Acme", "--entries", "1,x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid time entry ID "x"`)

	_, err = executeCmd(t, a, "invoices", "create", "Acme", "--expenses", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "expense 1 is already invoiced")
}

func TestInvoicesPDF(t *testing.T) {
	a := testApp(t)
	seedAcme(t, a)
	mustRun(t, a, "invoices", "create", "Acme", "--all")

	dir := t.TempDir()
	out := mustRun(t, a, "invoices", "pdf", "1", "--out", dir)
	assert.Contains(t, out, "PDF written to")
	assert.FileExists(t, filepath.Join(dir, "INV-2026-001.pdf"))

	inv, err := a.InvoiceService.GetInvoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
}

func TestEntriesImport(t *testing.T) {
	a := testApp(t)
	mustRun(t, a, "clients", "add", "Acme", "--rate", "25")
	mustRun(t, a, "projects", "add", "Acme", "Website")

	path := filepath.Join(t.TempDir(), "sheet.csv")
	csv := "Client,Project,Start,End,Description\n" +
		"Acme,Website,2026-03-09 09:00,2026-03-09 10:30,Homepage\n" +
		"Globex,,2026-03-09 09:00,2026-03-09 10:00,Unknown\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	out := mustRun(t, a, "entries", "import", path, "--dry-run")
	assert.Contains(t, out, "1 entries parsed, nothing saved")

	out = mustRun(t, a, "entries", "import", path)
	assert.Contains(t, out, `row 3: unknown client "Globex"`)
	assert.Contains(t, out, "Imported 1 entries")

	entries, err := a.Stores.Entries.List(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Homepage", entries[0].Description)
	assert.Equal(t, "tester", entries[0].UserID)
	assert.NotNil(t, entries[0].ProjectID)
	assert.True(t, testutil.Dec("1.5").Equal(entries[0].Hours()))
}

func TestTimerCommands(t *testing.T) {
	a := testApp(t)
	mustRun(t, a, "clients", "add", "Acme", "--rate", "25")

	out := mustRun(t, a, "timer", "status")
	assert.Contains(t, out, "No active timer")

	out = mustRun(t, a, "timer", "start", "Acme", "Coding")
	assert.Contains(t, out, "Timer started for Acme")

	_, err := executeCmd(t, a, "timer", "start", "Acme")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	out = mustRun(t, a, "timer", "status")
	assert.Contains(t, out, "Timer Status: running")
	assert.Contains(t, out, "Coding")

	out = mustRun(t, a, "timer", "stop")
	assert.Contains(t, out, "Timer stopped")

	_, err = executeCmd(t, a, "timer", "stop")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestReset(t *testing.T) {
	a := testApp(t)
	seedAcme(t, a)
	mustRun(t, a, "invoices", "create", "Acme", "--all")

	out, err := executeCmdWithInput(t, a, "n\n", "reset", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")

	out, err = executeCmdWithInput(t, a, "y\n", "reset", "invoices")
	require.NoError(t, err)
	assert.Contains(t, out, "All invoices have been deleted")

	out = mustRun(t, a, "invoices", "unbilled", "Acme")
	assert.Contains(t, out, "Unbilled total: $100.00")

	mustRun(t, a, "reset", "all", "--yes")
	out = mustRun(t, a, "clients", "list")
	assert.Contains(t, out, "No clients found")
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"concurrency", fmt.Errorf("time entry 4: %w", domain.ErrConcurrency), "conflict, reload and retry: time entry 4: concurrent modification"},
		{"infrastructure", &domain.InfrastructureError{Op: "create invoice", Err: errors.New("disk full")}, "internal error during create invoice: disk full"},
		{"validation", domain.Invalid("quantity must be at least 1"), "invalid input: validation failed: quantity must be at least 1"},
		{"not found", domain.NotFound("invoice", 9), "not found: invoice 9: not found"},
		{"invalid reference", fmt.Errorf("expense 2 references product 7: %w", domain.ErrInvalidReference), "invalid reference: expense 2 references product 7: invalid reference"},
		{"invalid state", domain.InvalidState("invoice 3 is already sent"), "not allowed now: invalid state: invoice 3 is already sent"},
		{"unclassified", errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "Acme", truncate("Acme", 10))
	assert.Equal(t, "Zürich Ö...", truncate("Zürich Öffentlich", 11))
	assert.Equal(t, "日本語", truncate("日本語", 3))
	assert.Equal(t, "日本...", truncate("日本語テキスト", 5))
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList(" 1, 2,,5 ", "expense")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 5}, ids)

	ids, err = parseIDList("", "expense")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDList("0", "expense")
	assert.Error(t, err)
}

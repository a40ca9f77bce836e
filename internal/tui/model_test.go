package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/andy/billable/internal/document"
	"github.com/andy/billable/internal/repository"
	"github.com/andy/billable/internal/service"
	"github.com/andy/billable/internal/testutil"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pickerFixture struct {
	deps      Deps
	clientID  int64
	runningID int64
}

// newPickerFixture seeds one client with a 3h entry at 25/h, a running
// entry and a 2 x 12.50 expense.
func newPickerFixture(t *testing.T) pickerFixture {
	t.Helper()
	ctx := context.Background()
	database := testutil.NewTestDB(t)
	stores := repository.NewStores(database)

	client := testutil.NewTestClient("Acme", "25")
	require.NoError(t, stores.Clients.Create(ctx, client))
	require.NoError(t, stores.Entries.Create(ctx, testutil.NewTestEntry(client.ID, "3")))
	running := testutil.NewTestEntry(client.ID, "0", testutil.Running())
	require.NoError(t, stores.Entries.Create(ctx, running))
	product := testutil.NewTestProduct("HOST", "12.50")
	require.NoError(t, stores.Products.Create(ctx, product))
	require.NoError(t, stores.Expenses.Create(ctx, testutil.NewTestExpense(client.ID, product.ID, "12.50", 2)))

	return pickerFixture{
		deps: Deps{
			Clients:  stores.Clients,
			Unbilled: service.NewUnbilledService(database, nil),
			Invoices: service.NewInvoiceService(database, testutil.NewTestUoW(database),
				document.NewPDFRenderer("$"),
				service.WithClock(testutil.FixedClock(testutil.Day)),
			),
		},
		clientID:  client.ID,
		runningID: running.ID,
	}
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// update feeds msg to the model and keeps running the returned commands
// until none is left, the way the program loop would.
func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	for msg != nil {
		next, cmd := m.Update(msg)
		m = next.(Model)
		if cmd == nil {
			break
		}
		msg = cmd()
	}
	return m
}

func start(t *testing.T, m Model) Model {
	t.Helper()
	return update(t, m, m.Init()())
}

func TestPicker_CreatesInvoiceFromSelection(t *testing.T) {
	f := newPickerFixture(t)
	m := start(t, New(context.Background(), f.deps, 0))

	require.Equal(t, ScreenClients, m.screen)
	require.Len(t, m.clients, 1)
	assert.Contains(t, m.View(), "Acme")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ScreenItems, m.screen)
	require.Len(t, m.rows, 3)
	assert.Equal(t, "Acme", m.client.Name)

	m = update(t, m, keyRune('a'))
	assert.Len(t, m.selected, 2, "running entry is never selected")
	assert.True(t, testutil.Dec("100").Equal(m.SelectedTotal()), "got %s", m.SelectedTotal())
	assert.Contains(t, m.View(), "$100.00")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NoError(t, m.err)
	require.Equal(t, ScreenCreated, m.screen)
	require.NotNil(t, m.created)
	assert.True(t, testutil.Dec("100").Equal(m.created.TotalAmount))
	assert.Len(t, m.created.TimeEntries, 1)
	assert.Len(t, m.created.Expenses, 1)
	assert.Contains(t, m.View(), m.created.Number)

	// back to the item list, which now only holds the running entry
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ScreenItems, m.screen)
	require.Len(t, m.rows, 1)
	assert.Equal(t, f.runningID, m.rows[0].id)
	assert.True(t, m.rows[0].running)
}

func TestPicker_StartsAtClient(t *testing.T) {
	f := newPickerFixture(t)
	m := start(t, New(context.Background(), f.deps, f.clientID))

	assert.Equal(t, ScreenItems, m.screen)
	assert.Len(t, m.rows, 3)
	assert.True(t, strings.Contains(m.View(), "Unbilled items: Acme"))

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ScreenClients, m.screen)
	assert.Len(t, m.clients, 1)
}

func TestPicker_Selection(t *testing.T) {
	f := newPickerFixture(t)
	m := start(t, New(context.Background(), f.deps, f.clientID))

	t.Run("enter with nothing selected", func(t *testing.T) {
		got := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.Equal(t, ScreenItems, got.screen)
		assert.Equal(t, "Select at least one item", got.status)
	})

	t.Run("running entry cannot be toggled", func(t *testing.T) {
		got := m
		for i, r := range m.rows {
			if r.running {
				got.cursor = i
			}
		}
		got.selected = map[int]bool{}
		got = update(t, got, keyRune('x'))
		assert.Empty(t, got.selected)
		assert.Contains(t, got.status, "Stop the timer")
	})

	t.Run("toggle twice clears", func(t *testing.T) {
		got := m
		got.selected = map[int]bool{}
		for i, r := range m.rows {
			if !r.running {
				got.cursor = i
				break
			}
		}
		got = update(t, got, keyRune('x'))
		assert.Len(t, got.selected, 1)
		got = update(t, got, keyRune('x'))
		assert.Empty(t, got.selected)
	})

	t.Run("toggle all twice clears", func(t *testing.T) {
		got := m
		got.selected = map[int]bool{}
		got = update(t, got, keyRune('a'))
		got = update(t, got, keyRune('a'))
		assert.Empty(t, got.selected)
	})

	t.Run("cursor stays in range", func(t *testing.T) {
		got := m
		got.cursor = 0
		got = update(t, got, tea.KeyMsg{Type: tea.KeyUp})
		assert.Equal(t, 0, got.cursor)
		for i := 0; i < 10; i++ {
			got = update(t, got, tea.KeyMsg{Type: tea.KeyDown})
		}
		assert.Equal(t, len(m.rows)-1, got.cursor)
	})
}

func TestPicker_CreateErrorIsShown(t *testing.T) {
	f := newPickerFixture(t)
	m := start(t, New(context.Background(), f.deps, f.clientID))

	m = update(t, m, invoiceCreatedMsg{err: errors.New("boom")})
	assert.Equal(t, ScreenItems, m.screen)
	assert.Contains(t, m.View(), "Error: boom")
}

func TestPicker_Quit(t *testing.T) {
	m := New(context.Background(), Deps{}, 0)
	_, cmd := m.Update(keyRune('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"12.5", "$12.50"},
		{"1234.567", "$1,234.57"},
		{"1000000", "$1,000,000.00"},
		{"-42.1", "-$42.10"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMoney(testutil.Dec(tt.in)), tt.in)
	}
}

func TestTruncateStr(t *testing.T) {
	assert.Equal(t, "Acme", truncateStr("Acme", 10))
	assert.Equal(t, "Mü...", truncateStr("Müller GmbH", 5))
	assert.Equal(t, "日本", truncateStr("日本語", 2))
}

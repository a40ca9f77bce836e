// Package tui is an interactive picker that turns a client's unbilled
// items into an invoice.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
	"github.com/andy/billable/internal/service"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Screen represents the current step of the picker
type Screen int

const (
	ScreenClients Screen = iota
	ScreenItems
	ScreenCreated
)

// String returns the screen name
func (s Screen) String() string {
	switch s {
	case ScreenClients:
		return "Choose a client"
	case ScreenItems:
		return "Unbilled items"
	case ScreenCreated:
		return "Invoice created"
	default:
		return "Unknown"
	}
}

// Deps are the stores and services the picker needs
type Deps struct {
	Clients  repository.ClientRepository
	Unbilled service.UnbilledService
	Invoices service.InvoiceService
}

type rowKind int

const (
	rowEntry rowKind = iota
	rowExpense
)

// row is one selectable line on the items screen
type row struct {
	kind    rowKind
	id      int64
	label   string
	detail  string
	total   decimal.Decimal
	running bool
}

// Model is the root Bubble Tea model
type Model struct {
	ctx    context.Context
	deps   Deps
	keys   KeyMap
	help   help.Model
	screen Screen
	width  int
	height int

	clients  []*domain.Client
	client   *domain.Client
	rows     []row
	selected map[int]bool
	cursor   int
	created  *domain.Invoice

	loading bool
	status  string
	err     error
}

// New creates the picker. A positive clientID skips the client list.
func New(ctx context.Context, deps Deps, clientID int64) Model {
	m := Model{
		ctx:      ctx,
		deps:     deps,
		keys:     DefaultKeyMap,
		help:     help.New(),
		screen:   ScreenClients,
		selected: map[int]bool{},
		loading:  true,
	}
	if clientID > 0 {
		m.screen = ScreenItems
		m.client = &domain.Client{ID: clientID}
	}
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.screen == ScreenItems {
		return m.loadUnbilled(m.client.ID)
	}
	return m.loadClients()
}

func (m Model) loadClients() tea.Cmd {
	ctx, clients := m.ctx, m.deps.Clients
	return func() tea.Msg {
		list, err := clients.List(ctx)
		return clientsLoadedMsg{clients: list, err: err}
	}
}

func (m Model) loadUnbilled(clientID int64) tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		client, err := deps.Clients.GetByID(ctx, clientID)
		if err != nil {
			return unbilledLoadedMsg{err: err}
		}
		items, err := deps.Unbilled.GetUnbilledItems(ctx, clientID)
		return unbilledLoadedMsg{client: client, items: items, err: err}
	}
}

func (m Model) createInvoice() tea.Cmd {
	req := service.CreateInvoiceRequest{ClientID: m.client.ID}
	for i, r := range m.rows {
		if !m.selected[i] {
			continue
		}
		switch r.kind {
		case rowEntry:
			req.TimeEntryIDs = append(req.TimeEntryIDs, r.id)
		case rowExpense:
			req.ExpenseIDs = append(req.ExpenseIDs, r.id)
		}
	}
	ctx, invoices := m.ctx, m.deps.Invoices
	return func() tea.Msg {
		inv, err := invoices.CreateInvoice(ctx, req)
		return invoiceCreatedMsg{invoice: inv, err: err}
	}
}

func buildRows(items *service.UnbilledItems) []row {
	rows := make([]row, 0, len(items.TimeEntries)+len(items.Expenses))
	for _, te := range items.TimeEntries {
		e := te.Entry
		detail := fmt.Sprintf("%sh @ %s (%s)", e.Hours().StringFixed(2), formatMoney(te.Rate), te.RateSource)
		if e.IsRunning() {
			detail = "timer running"
		}
		rows = append(rows, row{
			kind:    rowEntry,
			id:      e.ID,
			label:   e.StartTime.Local().Format("2006-01-02") + " " + e.Description,
			detail:  detail,
			total:   te.Total,
			running: e.IsRunning(),
		})
	}
	for _, x := range items.Expenses {
		rows = append(rows, row{
			kind:   rowExpense,
			id:     x.Expense.ID,
			label:  x.Expense.Description,
			detail: fmt.Sprintf("%d x %s", x.Expense.Quantity, formatMoney(x.Expense.UnitAmount)),
			total:  x.Total,
		})
	}
	return rows
}

// SelectedTotal sums the selected rows
func (m Model) SelectedTotal() decimal.Decimal {
	total := decimal.Zero
	for i, r := range m.rows {
		if m.selected[i] {
			total = total.Add(r.total)
		}
	}
	return total
}

func (m Model) listLen() int {
	if m.screen == ScreenClients {
		return len(m.clients)
	}
	return len(m.rows)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case clientsLoadedMsg:
		m.loading = false
		m.clients, m.err = msg.clients, msg.err
		m.cursor = 0
		return m, nil

	case unbilledLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.client = msg.client
		m.rows = buildRows(msg.items)
		m.selected = map[int]bool{}
		m.cursor = 0
		return m, nil

	case invoiceCreatedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.created = msg.invoice
		m.screen = ScreenCreated
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		switch m.screen {
		case ScreenItems:
			m.screen = ScreenClients
			m.rows = nil
			m.err = nil
			m.loading = true
			return m, m.loadClients()
		case ScreenCreated:
			m.screen = ScreenItems
			m.loading = true
			return m, m.loadUnbilled(m.client.ID)
		}
		return m, nil
	}

	if m.loading {
		return m, nil
	}

	switch m.screen {
	case ScreenClients:
		if key.Matches(msg, m.keys.Select) && m.cursor < len(m.clients) {
			m.client = m.clients[m.cursor]
			m.screen = ScreenItems
			m.loading = true
			return m, m.loadUnbilled(m.client.ID)
		}

	case ScreenItems:
		switch {
		case key.Matches(msg, m.keys.Toggle):
			m.toggle(m.cursor)
		case key.Matches(msg, m.keys.All):
			m.toggleAll()
		case key.Matches(msg, m.keys.Select):
			if len(m.selected) == 0 {
				m.status = "Select at least one item"
				return m, nil
			}
			m.loading = true
			return m, m.createInvoice()
		}

	case ScreenCreated:
		if key.Matches(msg, m.keys.Select) {
			m.screen = ScreenItems
			m.loading = true
			return m, m.loadUnbilled(m.client.ID)
		}
	}
	return m, nil
}

func (m *Model) toggle(i int) {
	if i < 0 || i >= len(m.rows) {
		return
	}
	if m.rows[i].running {
		m.status = "Stop the timer before invoicing this entry"
		return
	}
	if m.selected[i] {
		delete(m.selected, i)
	} else {
		m.selected[i] = true
	}
}

// toggleAll selects every billable row, or clears the selection if all are selected.
func (m *Model) toggleAll() {
	billable := 0
	for _, r := range m.rows {
		if !r.running {
			billable++
		}
	}
	if len(m.selected) == billable {
		m.selected = map[int]bool{}
		return
	}
	for i, r := range m.rows {
		if !r.running {
			m.selected[i] = true
		}
	}
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	title := "billable - " + m.screen.String()
	if m.client != nil && m.client.Name != "" && m.screen != ScreenClients {
		title += ": " + m.client.Name
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(subtitleStyle.Render("Loading..."))
	case m.screen == ScreenClients:
		m.viewClients(&b)
	case m.screen == ScreenItems:
		m.viewItems(&b)
	case m.screen == ScreenCreated:
		m.viewCreated(&b)
	}

	if m.status != "" {
		b.WriteString("\n" + warningStyle.Render(m.status))
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()))
	}
	b.WriteString("\n\n" + m.help.View(m.keys))

	if m.width == 0 {
		return b.String()
	}
	innerWidth := m.width - 6 // border (2) + padding (4)
	if innerWidth < 20 {
		innerWidth = 20
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		appBorderStyle.Width(innerWidth).Render(b.String()))
}

func (m Model) viewClients(b *strings.Builder) {
	if len(m.clients) == 0 {
		b.WriteString(subtitleStyle.Render("No clients yet. Add one with: billable clients add <name>"))
		return
	}
	for i, c := range m.clients {
		line := fmt.Sprintf("%-30s %s", truncateStr(c.Name, 30), formatMoney(c.DefaultHourlyRate)+"/h")
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
}

func (m Model) viewItems(b *strings.Builder) {
	if len(m.rows) == 0 {
		b.WriteString(subtitleStyle.Render("Nothing to invoice"))
		return
	}
	for i, r := range m.rows {
		check := "[ ]"
		if m.selected[i] {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %-36s %-28s %12s", check, truncateStr(r.label, 36), r.detail, formatMoney(r.total))
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		case r.running:
			line = disabledStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + titleStyle.Render(fmt.Sprintf("%d selected", len(m.selected))))
	b.WriteString("  " + totalStyle.Render("Total "+formatMoney(m.SelectedTotal())))
}

func (m Model) viewCreated(b *strings.Builder) {
	inv := m.created
	b.WriteString(successStyle.Render(fmt.Sprintf("Invoice %s created", inv.Number)))
	b.WriteString("\n\n")
	fmt.Fprintf(b, "Status: %s\n", inv.Status)
	fmt.Fprintf(b, "Items:  %d time entries, %d expenses\n", len(inv.TimeEntries), len(inv.Expenses))
	b.WriteString(totalStyle.Render("Total:  " + formatMoney(inv.TotalAmount)))
	b.WriteString("\n\n" + subtitleStyle.Render(fmt.Sprintf("Send it with: billable invoices send %d", inv.ID)))
}

// Run starts the picker
func Run(ctx context.Context, deps Deps, clientID int64) error {
	p := tea.NewProgram(New(ctx, deps, clientID), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

package repository_test

import (
	"context"
	"testing"

	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/repository"
	"github.com/andy/billable/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*repository.Stores, context.Context) {
	t.Helper()
	database := testutil.NewTestDB(t)
	return repository.NewStores(database), context.Background()
}

func TestClientRoundTrip(t *testing.T) {
	stores, ctx := setup(t)

	client := testutil.NewTestClient("Acme", "25.50")
	client.CCEmails = []string{"a@acme.io", "b@acme.io"}
	require.NoError(t, stores.Clients.Create(ctx, client))

	got, err := stores.Clients.GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Name)
	assert.True(t, got.DefaultHourlyRate.Equal(testutil.Dec("25.5")))
	assert.Equal(t, []string{"a@acme.io", "b@acme.io"}, got.CCEmails)
	assert.Empty(t, got.BCCEmails)

	byName, err := stores.Clients.GetByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, client.ID, byName.ID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	stores, ctx := setup(t)

	_, err := stores.Clients.GetByID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = stores.Products.GetByID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = stores.Invoices.GetByID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = stores.Settings.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectNullRate(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))

	unset := testutil.NewTestProject(client.ID, "unset")
	require.NoError(t, stores.Projects.Create(ctx, unset))
	rated := testutil.NewTestProject(client.ID, "rated", testutil.WithProjectRate("5"))
	require.NoError(t, stores.Projects.Create(ctx, rated))

	got, err := stores.Projects.GetByID(ctx, unset.ID)
	require.NoError(t, err)
	assert.False(t, got.HourlyRate.Valid)

	got, err = stores.Projects.GetByID(ctx, rated.ID)
	require.NoError(t, err)
	assert.True(t, got.HourlyRate.Valid)
	assert.True(t, got.HourlyRate.Decimal.Equal(decimal.NewFromInt(5)))
}

func TestSettingsUpsert(t *testing.T) {
	stores, ctx := setup(t)

	require.NoError(t, stores.Settings.Save(ctx, &domain.Settings{DefaultHourlyRate: testutil.Dec("20"), CompanyName: "Me"}))
	require.NoError(t, stores.Settings.Save(ctx, &domain.Settings{DefaultHourlyRate: testutil.Dec("30"), CompanyName: "Me Ltd"}))

	s, err := stores.Settings.Get(ctx)
	require.NoError(t, err)
	assert.True(t, s.DefaultHourlyRate.Equal(testutil.Dec("30")))
	assert.Equal(t, "Me Ltd", s.CompanyName)
}

func TestEntryUnbilledAndRunning(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))

	billed := testutil.NewTestEntry(client.ID, "2")
	billed.MarkInvoiced(testutil.Day)
	require.NoError(t, stores.Entries.Create(ctx, billed))

	open := testutil.NewTestEntry(client.ID, "1")
	require.NoError(t, stores.Entries.Create(ctx, open))

	running := testutil.NewTestEntry(client.ID, "0", testutil.Running())
	require.NoError(t, stores.Entries.Create(ctx, running))

	unbilled, err := stores.Entries.ListUnbilledByClient(ctx, client.ID)
	require.NoError(t, err)
	ids := []int64{}
	for _, e := range unbilled {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []int64{open.ID, running.ID}, ids)

	got, err := stores.Entries.GetRunning(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, running.ID, got.ID)
	assert.False(t, got.HoursSpent.Valid)
}

func TestGetByIDsSkipsMissing(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))
	entry := testutil.NewTestEntry(client.ID, "1")
	require.NoError(t, stores.Entries.Create(ctx, entry))

	got, err := stores.Entries.GetByIDs(ctx, []int64{entry.ID, 9999})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.ID, got[0].ID)

	none, err := stores.Expenses.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveBillingDetectsStaleVersion(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))
	entry := testutil.NewTestEntry(client.ID, "1")
	require.NoError(t, stores.Entries.Create(ctx, entry))

	first, err := stores.Entries.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	second, err := stores.Entries.GetByID(ctx, entry.ID)
	require.NoError(t, err)

	first.MarkInvoiced(testutil.Day)
	require.NoError(t, stores.Entries.SaveBilling(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.MarkInvoiced(testutil.Day)
	err = stores.Entries.SaveBilling(ctx, second)
	assert.ErrorIs(t, err, domain.ErrConcurrency)

	missing := &domain.TimeEntry{ID: 9999, Version: 1}
	assert.ErrorIs(t, stores.Entries.SaveBilling(ctx, missing), domain.ErrNotFound)
}

func TestExpenseStampsRoundTrip(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))
	product := testutil.NewTestProduct("HOST", "12.50")
	require.NoError(t, stores.Products.Create(ctx, product))

	expense := testutil.NewTestExpense(client.ID, product.ID, "12.50", 4)
	require.NoError(t, stores.Expenses.Create(ctx, expense))

	expense.MarkInvoiced(testutil.Day)
	expense.MarkSent(testutil.Day)
	require.NoError(t, stores.Expenses.SaveBilling(ctx, expense))

	got, err := stores.Expenses.GetByID(ctx, expense.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InvoicedDate)
	assert.Equal(t, "2026-03-14", got.InvoicedDate.Format(domain.DateLayout))
	require.NotNil(t, got.InvoiceSentDate)
	assert.Nil(t, got.PaidDate)
	assert.True(t, got.TotalAmount.Equal(testutil.Dec("50")))

	unbilled, err := stores.Expenses.ListUnbilledByClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Empty(t, unbilled)
}

func TestInvoiceLinksAndDelete(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))
	product := testutil.NewTestProduct("HOST", "5")
	require.NoError(t, stores.Products.Create(ctx, product))
	entry := testutil.NewTestEntry(client.ID, "1")
	require.NoError(t, stores.Entries.Create(ctx, entry))
	e1 := testutil.NewTestExpense(client.ID, product.ID, "5", 1)
	require.NoError(t, stores.Expenses.Create(ctx, e1))
	e2 := testutil.NewTestExpense(client.ID, product.ID, "5", 2)
	require.NoError(t, stores.Expenses.Create(ctx, e2))

	invoice := domain.NewInvoice(client.ID, domain.InvoiceStatusDraft, testutil.Day)
	invoice.Number = "INV-2026-001"
	require.NoError(t, stores.Invoices.Create(ctx, invoice))

	require.NoError(t, stores.Invoices.AddTimeEntry(ctx, &domain.InvoiceTimeEntry{InvoiceID: invoice.ID, TimeEntryID: entry.ID}))
	// Two expenses for the same product share the invoice.
	for _, e := range []*domain.Expense{e1, e2} {
		link := &domain.InvoiceExpense{
			InvoiceID:          invoice.ID,
			ExpenseID:          e.ID,
			ProductID:          product.ID,
			UnitAmount:         e.UnitAmount,
			Quantity:           e.Quantity,
			ProductInvoiceDate: testutil.Day,
		}
		require.NoError(t, stores.Invoices.AddExpense(ctx, link))
		assert.NotZero(t, link.ID)
	}

	got, err := stores.Invoices.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, got.TimeEntries, 1)
	assert.Len(t, got.Expenses, 2)

	linked, err := stores.Expenses.ListByInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	require.NoError(t, stores.Invoices.DeleteLinks(ctx, invoice.ID))
	require.NoError(t, stores.Invoices.Delete(ctx, got))

	_, err = stores.Invoices.GetByID(ctx, invoice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNextNumber(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))

	n, err := stores.Invoices.NextNumber(ctx, "INV", 2026)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-001", n)

	for _, num := range []string{"INV-2026-001", "INV-2026-009", "INV-2025-044"} {
		inv := domain.NewInvoice(client.ID, "", testutil.Day)
		inv.Number = num
		require.NoError(t, stores.Invoices.Create(ctx, inv))
	}

	n, err = stores.Invoices.NextNumber(ctx, "INV", 2026)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-010", n)
}

func TestNextNumberTreatsPrefixLiterally(t *testing.T) {
	stores, ctx := setup(t)
	client := testutil.NewTestClient("Acme", "10")
	require.NoError(t, stores.Clients.Create(ctx, client))

	// "A_C" as a LIKE pattern would also match "ABC"; "%" would match anything.
	for _, num := range []string{"ABC-2026-007", "INV-2026-042", "A_C-2026-002"} {
		inv := domain.NewInvoice(client.ID, "", testutil.Day)
		inv.Number = num
		require.NoError(t, stores.Invoices.Create(ctx, inv))
	}

	n, err := stores.Invoices.NextNumber(ctx, "A_C", 2026)
	require.NoError(t, err)
	assert.Equal(t, "A_C-2026-003", n)

	n, err = stores.Invoices.NextNumber(ctx, "%", 2026)
	require.NoError(t, err)
	assert.Equal(t, "%-2026-001", n)
}

func TestInvoiceListFilters(t *testing.T) {
	stores, ctx := setup(t)
	a := testutil.NewTestClient("A", "10")
	b := testutil.NewTestClient("B", "10")
	require.NoError(t, stores.Clients.Create(ctx, a))
	require.NoError(t, stores.Clients.Create(ctx, b))

	for i, c := range []*domain.Client{a, a, b} {
		inv := domain.NewInvoice(c.ID, "", testutil.Day)
		inv.Number = "INV-2026-00" + string(rune('1'+i))
		if i == 1 {
			inv.Status = domain.InvoiceStatusPaid
		}
		require.NoError(t, stores.Invoices.Create(ctx, inv))
	}

	forA, err := stores.Invoices.List(ctx, &a.ID, nil)
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	paid := domain.InvoiceStatusPaid
	paidA, err := stores.Invoices.List(ctx, &a.ID, &paid)
	require.NoError(t, err)
	assert.Len(t, paidA, 1)

	all, err := stores.Invoices.List(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

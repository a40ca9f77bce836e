package service

import (
	"context"
	"sync"
	"testing"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/document"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/events"
	"github.com/andy/billable/internal/mailer"
	"github.com/andy/billable/internal/repository"
	"github.com/andy/billable/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	last *document.Invoice
	err  error
}

func (r *fakeRenderer) Render(_ context.Context, inv *document.Invoice) ([]byte, error) {
	r.last = inv
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-fake " + inv.Number), nil
}

type fakeMailer struct {
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.InvoiceEvent
}

func (p *fakePublisher) Publish(_ context.Context, ev events.InvoiceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type recordingObserver struct {
	events []UseCaseEvent
}

func (o *recordingObserver) ObserveUseCase(_ context.Context, ev UseCaseEvent) {
	o.events = append(o.events, ev)
}

// billingFixture is a migrated database with direct repository access.
type billingFixture struct {
	t        *testing.T
	ctx      context.Context
	db       *db.DB
	st       *repository.Stores
	renderer *fakeRenderer
	events   *fakePublisher
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	return &billingFixture{
		t:        t,
		ctx:      context.Background(),
		db:       database,
		st:       repository.NewStores(database),
		renderer: &fakeRenderer{},
		events:   &fakePublisher{},
	}
}

func (f *billingFixture) invoices(opts ...InvoiceOption) InvoiceService {
	return f.invoicesWithUoW(testutil.NewTestUoW(f.db), opts...)
}

func (f *billingFixture) invoicesWithUoW(uow db.UnitOfWork, opts ...InvoiceOption) InvoiceService {
	base := []InvoiceOption{
		WithClock(testutil.FixedClock(testutil.Day)),
		WithPublisher(f.events),
	}
	return NewInvoiceService(f.db, uow, f.renderer, append(base, opts...)...)
}

func (f *billingFixture) client(name, rate string) *domain.Client {
	f.t.Helper()
	c := testutil.NewTestClient(name, rate)
	require.NoError(f.t, f.st.Clients.Create(f.ctx, c))
	return c
}

func (f *billingFixture) project(clientID int64, name string, opts ...testutil.ProjectOption) *domain.Project {
	f.t.Helper()
	p := testutil.NewTestProject(clientID, name, opts...)
	require.NoError(f.t, f.st.Projects.Create(f.ctx, p))
	return p
}

func (f *billingFixture) entry(clientID int64, hours string, opts ...testutil.EntryOption) *domain.TimeEntry {
	f.t.Helper()
	e := testutil.NewTestEntry(clientID, hours, opts...)
	require.NoError(f.t, f.st.Entries.Create(f.ctx, e))
	return e
}

func (f *billingFixture) product(sku, price string) *domain.Product {
	f.t.Helper()
	p := testutil.NewTestProduct(sku, price)
	require.NoError(f.t, f.st.Products.Create(f.ctx, p))
	return p
}

func (f *billingFixture) expense(clientID, productID int64, unit string, qty int64) *domain.Expense {
	f.t.Helper()
	x := testutil.NewTestExpense(clientID, productID, unit, qty)
	require.NoError(f.t, f.st.Expenses.Create(f.ctx, x))
	return x
}

// corruptTotal overwrites an expense's stored total behind the repository's back.
func (f *billingFixture) corruptTotal(expenseID int64, total string) {
	f.t.Helper()
	_, err := f.db.ExecContext(f.ctx, `UPDATE expenses SET total_amount = ? WHERE id = ?`, total, expenseID)
	require.NoError(f.t, err)
}

func (f *billingFixture) settings(rate string) {
	f.t.Helper()
	require.NoError(f.t, f.st.Settings.Save(f.ctx, &domain.Settings{
		DefaultHourlyRate: testutil.Dec(rate),
		CompanyName:       "Me Consulting",
		CompanyEmail:      "me@example.com",
	}))
}

func (f *billingFixture) reloadEntry(id int64) *domain.TimeEntry {
	f.t.Helper()
	e, err := f.st.Entries.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return e
}

func (f *billingFixture) reloadExpense(id int64) *domain.Expense {
	f.t.Helper()
	x, err := f.st.Expenses.GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return x
}

func (f *billingFixture) countInvoices() int {
	f.t.Helper()
	var n int
	require.NoError(f.t, f.db.QueryRowContext(f.ctx, `SELECT COUNT(*) FROM invoices`).Scan(&n))
	return n
}

var today = domain.DateOf(testutil.Day)

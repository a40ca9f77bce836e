package repository

import (
	"context"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/domain"
)

// ClientRepository manages client persistence
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	GetByName(ctx context.Context, name string) (*domain.Client, error)
	List(ctx context.Context) ([]*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
}

// ProjectRepository manages project persistence
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id int64) (*domain.Project, error)
	GetByName(ctx context.Context, clientID int64, name string) (*domain.Project, error)
	ListByClient(ctx context.Context, clientID int64) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
}

// ProductRepository manages the expense catalog
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetBySKU(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context) ([]*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
}

// SettingsRepository manages the singleton settings row
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error) // ErrNotFound if never saved
	Save(ctx context.Context, settings *domain.Settings) error
}

// TimeEntryRepository manages time entry persistence. Writes are versioned.
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *domain.TimeEntry) error
	GetByID(ctx context.Context, id int64) (*domain.TimeEntry, error)
	// GetByIDs returns the entries that exist; unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.TimeEntry, error)
	List(ctx context.Context, clientID *int64) ([]*domain.TimeEntry, error)
	ListUnbilledByClient(ctx context.Context, clientID int64) ([]*domain.TimeEntry, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.TimeEntry, error)
	GetRunning(ctx context.Context) (*domain.TimeEntry, error) // nil if no timer runs
	Update(ctx context.Context, entry *domain.TimeEntry) error
	// SaveBilling persists the hourly rate and lifecycle stamps only.
	SaveBilling(ctx context.Context, entry *domain.TimeEntry) error
}

// ExpenseRepository manages expense persistence. Writes are versioned.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *domain.Expense) error
	GetByID(ctx context.Context, id int64) (*domain.Expense, error)
	// GetByIDs returns the expenses that exist; unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Expense, error)
	List(ctx context.Context, clientID *int64) ([]*domain.Expense, error)
	ListUnbilledByClient(ctx context.Context, clientID int64) ([]*domain.Expense, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]*domain.Expense, error)
	// SaveBilling persists the total amount and lifecycle stamps only.
	SaveBilling(ctx context.Context, expense *domain.Expense) error
}

// InvoiceRepository manages invoices and their join rows
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	// GetByID loads the invoice with its join rows.
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	List(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error)
	Update(ctx context.Context, invoice *domain.Invoice) error
	Delete(ctx context.Context, invoice *domain.Invoice) error
	AddTimeEntry(ctx context.Context, link *domain.InvoiceTimeEntry) error
	AddExpense(ctx context.Context, link *domain.InvoiceExpense) error
	DeleteLinks(ctx context.Context, invoiceID int64) error
	NextNumber(ctx context.Context, prefix string, year int) (string, error)
}

// Stores bundles every repository over one DBTX, so a service can bind
// them all to a transaction at once.
type Stores struct {
	Clients  ClientRepository
	Projects ProjectRepository
	Products ProductRepository
	Settings SettingsRepository
	Entries  TimeEntryRepository
	Expenses ExpenseRepository
	Invoices InvoiceRepository
}

// NewStores creates SQLite repositories over q, which may be a *sql.DB or a *sql.Tx.
func NewStores(q db.DBTX) *Stores {
	return &Stores{
		Clients:  NewClientRepo(q),
		Projects: NewProjectRepo(q),
		Products: NewProductRepo(q),
		Settings: NewSettingsRepo(q),
		Entries:  NewEntryRepo(q),
		Expenses: NewExpenseRepo(q),
		Invoices: NewInvoiceRepo(q),
	}
}

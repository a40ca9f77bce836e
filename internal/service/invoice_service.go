package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/document"
	"github.com/andy/billable/internal/domain"
	"github.com/andy/billable/internal/events"
	"github.com/andy/billable/internal/mailer"
	"github.com/andy/billable/internal/repository"
	"github.com/shopspring/decimal"
)

// ErrNoRecipient is reported in SendResult when the client has no email address.
var ErrNoRecipient = errors.New("client has no email address")

// CreateInvoiceRequest selects the unbilled items to put on a new invoice.
// Unknown IDs are ignored; an empty Status means Draft.
type CreateInvoiceRequest struct {
	ClientID     int64
	TimeEntryIDs []int64
	ExpenseIDs   []int64
	Status       domain.InvoiceStatus
}

// Rendered is an invoice document ready to save or attach.
type Rendered struct {
	FileName string
	PDF      []byte
}

// SendResult reports a completed send. The PDF is always returned so the
// caller can hand it over directly when email delivery did not happen.
type SendResult struct {
	Invoice *domain.Invoice
	Rendered
	Emailed    bool
	EmailError error
}

// InvoiceService manages the invoice lifecycle and the billing stamps on its items
type InvoiceService interface {
	// CreateInvoice prices the selected items at current rates, stores the
	// invoice with its join rows and stamps every item as invoiced.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error)

	// SendInvoice renders the invoice, moves it from Draft to Sent and stamps
	// the sent date on every item, then emails the document.
	SendInvoice(ctx context.Context, invoiceID int64) (*SendResult, error)

	// MarkInvoicePaid sets Paid from any status and stamps the paid date on every item.
	MarkInvoicePaid(ctx context.Context, invoiceID int64) error

	// VoidInvoice cancels a draft or sent invoice. Item stamps are left alone.
	VoidInvoice(ctx context.Context, invoiceID int64) error

	// DeleteInvoice clears every stamp on the invoice's items, removes the
	// join rows and deletes the invoice, making the items unbilled again.
	DeleteInvoice(ctx context.Context, invoiceID int64) error

	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error)

	// RenderInvoice produces the document for an invoice without changing it.
	RenderInvoice(ctx context.Context, invoiceID int64) (*Rendered, error)
}

// InvoiceOption configures an InvoiceService
type InvoiceOption func(*invoiceService)

func WithClock(clock Clock) InvoiceOption {
	return func(s *invoiceService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) InvoiceOption {
	return func(s *invoiceService) {
		s.logger = loggerOrDiscard(logger)
	}
}

// WithMailer enables email delivery on send. The subject is followed by the invoice number.
func WithMailer(sender mailer.Sender, subject, body string) InvoiceOption {
	return func(s *invoiceService) {
		s.mailer = sender
		s.subject = subject
		s.body = body
	}
}

func WithPublisher(p events.Publisher) InvoiceOption {
	return func(s *invoiceService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithObservers(observers ...UseCaseObserver) InvoiceOption {
	return func(s *invoiceService) {
		s.observer = useCaseObserverOrNoop(observers)
	}
}

// WithNumberPrefix sets the prefix of generated invoice numbers (default "INV").
func WithNumberPrefix(prefix string) InvoiceOption {
	return func(s *invoiceService) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

type invoiceService struct {
	stores    *repository.Stores
	uow       db.UnitOfWork
	renderer  document.Renderer
	mailer    mailer.Sender
	subject   string
	body      string
	publisher events.Publisher
	clock     Clock
	logger    *slog.Logger
	observer  UseCaseObserver
	prefix    string
}

// NewInvoiceService creates a new invoice service. Reads go through database;
// every mutation runs inside one uow transaction.
func NewInvoiceService(database db.DBTX, uow db.UnitOfWork, renderer document.Renderer, opts ...InvoiceOption) InvoiceService {
	s := &invoiceService{
		stores:    repository.NewStores(database),
		uow:       uow,
		renderer:  renderer,
		subject:   "Invoice",
		publisher: events.Noop{},
		clock:     systemClock,
		logger:    loggerOrDiscard(nil),
		observer:  NoopUseCaseObserver{},
		prefix:    "INV",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *invoiceService) observe(ctx context.Context, name string, startedAt time.Time, err error, fields map[string]any) {
	s.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

func (s *invoiceService) publish(ctx context.Context, eventType string, inv *domain.Invoice) {
	ev := events.NewInvoiceEvent(eventType, inv.ID, inv.Number, inv.ClientID, string(inv.Status), inv.TotalAmount, s.clock())
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish invoice event",
			"type", eventType, "invoice_id", inv.ID, "error", err)
	}
}

func initialStatus(status domain.InvoiceStatus) (domain.InvoiceStatus, error) {
	if status == "" {
		return domain.InvoiceStatusDraft, nil
	}
	parsed, err := domain.ParseInvoiceStatus(string(status))
	if err != nil {
		return "", err
	}
	if parsed == domain.InvoiceStatusVoid {
		return "", domain.Invalid("an invoice cannot be created void")
	}
	return parsed, nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (inv *domain.Invoice, err error) {
	startedAt := time.Now()
	fields := map[string]any{"client_id": req.ClientID}
	defer func() { s.observe(ctx, "invoice.create", startedAt, err, fields) }()

	if req.ClientID <= 0 {
		return nil, domain.Invalid("client ID is required")
	}
	if len(req.TimeEntryIDs) == 0 && len(req.ExpenseIDs) == 0 {
		return nil, domain.Invalid("select at least one time entry or expense")
	}
	status, err := initialStatus(req.Status)
	if err != nil {
		return nil, err
	}
	today := domain.DateOf(s.clock())

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)
		rates := ratesFor(st)

		if _, err := st.Clients.GetByID(ctx, req.ClientID); err != nil {
			return err
		}

		entries, err := st.Entries.GetByIDs(ctx, uniqueIDs(req.TimeEntryIDs))
		if err != nil {
			return err
		}
		expenses, err := st.Expenses.GetByIDs(ctx, uniqueIDs(req.ExpenseIDs))
		if err != nil {
			return err
		}
		if len(entries) == 0 && len(expenses) == 0 {
			return domain.Invalid("none of the selected items exist")
		}

		total := decimal.Zero
		for _, e := range entries {
			if err := checkBillable(req.ClientID, "time entry", e.ID, e.ClientID, &e.BillingStamps); err != nil {
				return err
			}
			if e.IsRunning() {
				return domain.Invalid("time entry %d is still running", e.ID)
			}
			rate, err := rates.ResolveHourlyRate(ctx, e.ProjectID, &e.ClientID)
			if err != nil {
				return err
			}
			e.HourlyRate = decimal.NewNullDecimal(rate)
			total = total.Add(e.Amount(rate))
		}

		products := make(map[int64]*domain.Product)
		for _, x := range expenses {
			if err := checkBillable(req.ClientID, "expense", x.ID, x.ClientID, &x.BillingStamps); err != nil {
				return err
			}
			healExpense(ctx, s.logger, x)
			product, ok := products[x.ProductID]
			if !ok {
				product, err = st.Products.GetByID(ctx, x.ProductID)
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("expense %d references product %d: %w", x.ID, x.ProductID, domain.ErrInvalidReference)
				}
				if err != nil {
					return err
				}
				products[x.ProductID] = product
			}
			total = total.Add(x.TotalAmount)
		}

		created := domain.NewInvoice(req.ClientID, status, today)
		created.TotalAmount = total
		switch status {
		case domain.InvoiceStatusSent:
			created.MarkSent(today)
		case domain.InvoiceStatusPaid:
			created.MarkPaid(today)
		}
		if created.Number, err = st.Invoices.NextNumber(ctx, s.prefix, today.Year()); err != nil {
			return err
		}
		if err := st.Invoices.Create(ctx, created); err != nil {
			return err
		}

		stamp := func(b *domain.BillingStamps) {
			b.MarkInvoiced(today)
			if created.InvoiceSentDate != nil {
				b.MarkSent(today)
			}
			if created.PaidDate != nil {
				b.MarkPaid(today)
			}
		}

		for _, e := range entries {
			stamp(&e.BillingStamps)
			if err := st.Entries.SaveBilling(ctx, e); err != nil {
				return err
			}
			link := &domain.InvoiceTimeEntry{InvoiceID: created.ID, TimeEntryID: e.ID}
			if err := st.Invoices.AddTimeEntry(ctx, link); err != nil {
				return err
			}
			created.TimeEntries = append(created.TimeEntries, link)
		}

		for _, x := range expenses {
			stamp(&x.BillingStamps)
			if err := st.Expenses.SaveBilling(ctx, x); err != nil {
				return err
			}
			description := x.Description
			if description == "" {
				description = products[x.ProductID].Description
			}
			link := &domain.InvoiceExpense{
				InvoiceID:          created.ID,
				ExpenseID:          x.ID,
				ProductID:          x.ProductID,
				Description:        description,
				UnitAmount:         x.UnitAmount,
				Quantity:           x.Quantity,
				ProductInvoiceDate: today,
			}
			if err := st.Invoices.AddExpense(ctx, link); err != nil {
				return err
			}
			created.Expenses = append(created.Expenses, link)
		}

		inv = created
		return nil
	})
	if err != nil {
		return nil, classify("create invoice", err)
	}

	fields["invoice_id"] = inv.ID
	fields["total"] = inv.TotalAmount.StringFixed(2)
	s.publish(ctx, events.InvoiceCreated, inv)
	return inv, nil
}

// checkBillable rejects items of another client and items already on an invoice.
func checkBillable(clientID int64, kind string, id, itemClientID int64, stamps *domain.BillingStamps) error {
	if itemClientID != clientID {
		return domain.Invalid("%s %d belongs to client %d, not %d", kind, id, itemClientID, clientID)
	}
	if stamps.IsInvoiced() {
		return domain.InvalidState("%s %d is already invoiced", kind, id)
	}
	return nil
}

func (s *invoiceService) SendInvoice(ctx context.Context, invoiceID int64) (result *SendResult, err error) {
	startedAt := time.Now()
	fields := map[string]any{"invoice_id": invoiceID}
	defer func() { s.observe(ctx, "invoice.send", startedAt, err, fields) }()

	today := domain.DateOf(s.clock())
	var (
		inv    *domain.Invoice
		client *domain.Client
		doc    *Rendered
	)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)

		var err error
		if inv, err = st.Invoices.GetByID(ctx, invoiceID); err != nil {
			return err
		}
		if err := inv.CanSend(); err != nil {
			return err
		}
		if client, err = st.Clients.GetByID(ctx, inv.ClientID); err != nil {
			return err
		}

		inv.MarkSent(today)
		if doc, err = s.render(ctx, st, inv, client); err != nil {
			return err
		}
		if err := st.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		return propagate(ctx, st, inv.ID, func(b *domain.BillingStamps) { b.MarkSent(today) })
	})
	if err != nil {
		return nil, classify("send invoice", err)
	}
	s.publish(ctx, events.InvoiceSent, inv)

	result = &SendResult{Invoice: inv, Rendered: *doc}
	result.EmailError = s.email(ctx, inv, client, doc)
	result.Emailed = result.EmailError == nil
	fields["emailed"] = result.Emailed
	if result.EmailError != nil && !errors.Is(result.EmailError, mailer.ErrDisabled) {
		s.logger.WarnContext(ctx, "invoice email failed, returning document to caller",
			"invoice_id", inv.ID, "error", result.EmailError)
	}
	return result, nil
}

func (s *invoiceService) email(ctx context.Context, inv *domain.Invoice, client *domain.Client, doc *Rendered) error {
	if s.mailer == nil {
		return mailer.ErrDisabled
	}
	if client.Email == "" {
		return ErrNoRecipient
	}
	return s.mailer.Send(ctx, mailer.Message{
		To:      []string{client.Email},
		CC:      client.CCEmails,
		BCC:     client.BCCEmails,
		Subject: s.subject + " " + inv.Number,
		Body:    s.body,
		Attachments: []mailer.Attachment{
			{Name: doc.FileName, ContentType: "application/pdf", Content: doc.PDF},
		},
	})
}

func (s *invoiceService) MarkInvoicePaid(ctx context.Context, invoiceID int64) (err error) {
	startedAt := time.Now()
	defer func() { s.observe(ctx, "invoice.mark_paid", startedAt, err, map[string]any{"invoice_id": invoiceID}) }()

	today := domain.DateOf(s.clock())
	var inv *domain.Invoice
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)

		var err error
		if inv, err = st.Invoices.GetByID(ctx, invoiceID); err != nil {
			return err
		}
		inv.MarkPaid(today)
		if err := st.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		return propagate(ctx, st, inv.ID, func(b *domain.BillingStamps) { b.MarkPaid(today) })
	})
	if err != nil {
		return classify("mark invoice paid", err)
	}
	s.publish(ctx, events.InvoicePaid, inv)
	return nil
}

func (s *invoiceService) VoidInvoice(ctx context.Context, invoiceID int64) (err error) {
	startedAt := time.Now()
	defer func() { s.observe(ctx, "invoice.void", startedAt, err, map[string]any{"invoice_id": invoiceID}) }()

	var inv *domain.Invoice
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)

		var err error
		if inv, err = st.Invoices.GetByID(ctx, invoiceID); err != nil {
			return err
		}
		if err := inv.Void(); err != nil {
			return err
		}
		return st.Invoices.Update(ctx, inv)
	})
	if err != nil {
		return classify("void invoice", err)
	}
	s.publish(ctx, events.InvoiceVoided, inv)
	return nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, invoiceID int64) (err error) {
	startedAt := time.Now()
	defer func() { s.observe(ctx, "invoice.delete", startedAt, err, map[string]any{"invoice_id": invoiceID}) }()

	var inv *domain.Invoice
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		st := repository.NewStores(tx)

		var err error
		if inv, err = st.Invoices.GetByID(ctx, invoiceID); err != nil {
			return err
		}
		// Items are found through the join rows, so clear them before unlinking.
		if err := propagate(ctx, st, inv.ID, func(b *domain.BillingStamps) { b.Clear() }); err != nil {
			return err
		}
		if err := st.Invoices.DeleteLinks(ctx, inv.ID); err != nil {
			return err
		}
		return st.Invoices.Delete(ctx, inv)
	})
	if err != nil {
		return classify("delete invoice", err)
	}
	s.publish(ctx, events.InvoiceDeleted, inv)
	return nil
}

// propagate applies one stamp change to every time entry and expense linked to an invoice.
func propagate(ctx context.Context, st *repository.Stores, invoiceID int64, apply func(*domain.BillingStamps)) error {
	entries, err := st.Entries.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		apply(&e.BillingStamps)
		if err := st.Entries.SaveBilling(ctx, e); err != nil {
			return err
		}
	}

	expenses, err := st.Expenses.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	for _, x := range expenses {
		apply(&x.BillingStamps)
		if err := st.Expenses.SaveBilling(ctx, x); err != nil {
			return err
		}
	}
	return nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := s.stores.Invoices.GetByID(ctx, id)
	if err != nil {
		return nil, classify("get invoice", err)
	}
	return inv, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error) {
	invoices, err := s.stores.Invoices.List(ctx, clientID, status)
	if err != nil {
		return nil, classify("list invoices", err)
	}
	return invoices, nil
}

func (s *invoiceService) RenderInvoice(ctx context.Context, invoiceID int64) (*Rendered, error) {
	inv, err := s.stores.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, classify("render invoice", err)
	}
	client, err := s.stores.Clients.GetByID(ctx, inv.ClientID)
	if err != nil {
		return nil, classify("render invoice", err)
	}
	doc, err := s.render(ctx, s.stores, inv, client)
	if err != nil {
		return nil, classify("render invoice", err)
	}
	return doc, nil
}

// render resolves the invoice into a document view and renders it.
// Time lines bill at the rate stored when the invoice was created;
// expense lines come from the join row snapshots.
func (s *invoiceService) render(ctx context.Context, st *repository.Stores, inv *domain.Invoice, client *domain.Client) (*Rendered, error) {
	view := &document.Invoice{
		Number: inv.Number,
		Date:   inv.InvoiceDate,
		Status: string(inv.Status),
		To: document.Party{
			Name:  client.Name,
			Email: client.Email,
		},
		Total: inv.TotalAmount,
	}

	settings, err := st.Settings.Get(ctx)
	switch {
	case err == nil:
		view.From = document.Party{
			Name:    settings.CompanyName,
			Email:   settings.CompanyEmail,
			Address: settings.CompanyAddress,
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	entries, err := st.Entries.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		rate := e.HourlyRate.Decimal
		view.Lines = append(view.Lines, document.Line{
			Date:        e.StartTime,
			Description: e.Description,
			Quantity:    e.Hours(),
			Unit:        "h",
			UnitPrice:   rate,
			Amount:      e.Amount(rate),
		})
	}
	for _, x := range inv.Expenses {
		view.Lines = append(view.Lines, document.Line{
			Date:        x.ProductInvoiceDate,
			Description: x.Description,
			Quantity:    decimal.NewFromInt(x.Quantity),
			UnitPrice:   x.UnitAmount,
			Amount:      x.Total(),
		})
	}

	pdf, err := s.renderer.Render(ctx, view)
	if err != nil {
		return nil, &domain.InfrastructureError{Op: "render invoice document", Err: err}
	}
	return &Rendered{FileName: view.FileName(), PDF: pdf}, nil
}

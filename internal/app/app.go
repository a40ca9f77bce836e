package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/andy/billable/internal/config"
	"github.com/andy/billable/internal/crypto"
	"github.com/andy/billable/internal/db"
	"github.com/andy/billable/internal/document"
	"github.com/andy/billable/internal/events"
	"github.com/andy/billable/internal/mailer"
	"github.com/andy/billable/internal/metrics"
	"github.com/andy/billable/internal/repository"
	"github.com/andy/billable/internal/service"
	"golang.org/x/term"
)

// App is the dependency injection container for all application components
type App struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories over the shared connection
	Stores *repository.Stores
	UoW    db.UnitOfWork

	Metrics   *metrics.Observer
	Publisher events.Publisher
	Mailer    mailer.Sender

	// Services
	UnbilledService service.UnbilledService
	InvoiceService  service.InvoiceService
	TimerService    service.TimerService

	closers []io.Closer
}

// Options adjust how NewWithConfig builds the container.
type Options struct {
	// LogOutput receives log records; stderr when nil.
	LogOutput io.Writer
	// Keyring supplies the database key for encrypted databases.
	Keyring crypto.Keyring
	// Prompt asks for a new database password when the keyring is empty.
	Prompt func() (string, error)
	Clock  service.Clock
}

// New loads the default config and builds the App from it.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(ctx, cfg, Options{})
}

// NewWithConfig creates an App with a provided config. It handles:
// 1. Creating directories and the logger
// 2. Getting the encryption key when the database is encrypted
// 3. Opening and migrating the database
// 4. Connecting the event publisher and the mail sender
// 5. Creating services
func NewWithConfig(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger := NewLogger(cfg, opts.LogOutput)

	password := ""
	if cfg.Database.Encrypted {
		var err error
		password, err = databaseKey(opts)
		if err != nil {
			return nil, err
		}
	}

	database, err := db.Open(cfg.Database.Path, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &App{
		Config:    cfg,
		DB:        database,
		Logger:    logger,
		Stores:    repository.NewStores(database),
		UoW:       db.NewUnitOfWork(database.DB),
		Metrics:   metrics.NewObserver(),
		Publisher: events.Noop{},
		Mailer:    mailer.Disabled{},
	}

	if url := cfg.Events.NATSURL; url != "" {
		pub, err := events.Connect(url, cfg.Events.SubjectPrefix)
		if err != nil {
			// invoices still work without events
			logger.Warn("event publishing disabled", "url", url, "error", err)
		} else {
			a.Publisher = pub
			a.closers = append(a.closers, pub)
		}
	}

	if cfg.MailReady() {
		sender, err := mailer.NewGraphSender(ctx, mailer.GraphConfig{
			TenantID:     cfg.Mail.TenantID,
			ClientID:     cfg.Mail.ClientID,
			ClientSecret: cfg.Mail.ClientSecret,
			Sender:       cfg.Mail.Sender,
			GraphURL:     cfg.Mail.GraphURL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to configure mail: %w", err)
		}
		a.Mailer = sender
	}

	observers := []service.UseCaseObserver{
		service.NewSlogUseCaseObserver(logger),
		a.Metrics,
	}

	a.UnbilledService = service.NewUnbilledService(database, logger, observers...)
	a.InvoiceService = service.NewInvoiceService(database, a.UoW,
		document.NewPDFRenderer(cfg.Invoice.Currency),
		service.WithClock(opts.Clock),
		service.WithLogger(logger),
		service.WithNumberPrefix(cfg.Invoice.NumberPrefix),
		service.WithMailer(a.Mailer, cfg.Invoice.EmailSubject, cfg.Invoice.EmailBody),
		service.WithPublisher(a.Publisher),
		service.WithObservers(observers...),
	)
	a.TimerService = service.NewTimerService(database, a.UoW, opts.Clock, cfg.User.Name)

	return a, nil
}

// NewLogger builds the slog logger described by cfg.Log.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func databaseKey(opts Options) (string, error) {
	keyring := opts.Keyring
	if keyring == nil {
		keyring = crypto.NewKeyring()
	}

	password, err := keyring.GetKey()
	if err == nil {
		return password, nil
	}

	prompt := opts.Prompt
	if prompt == nil {
		prompt = promptForPassword
	}
	fmt.Fprintln(os.Stderr, "Setting up database encryption for the first time...")
	password, err = prompt()
	if err != nil {
		return "", fmt.Errorf("failed to set password: %w", err)
	}

	if err := keyring.SetKey(password); err != nil {
		return "", fmt.Errorf("failed to store encryption key: %w", err)
	}
	return password, nil
}

// Close cleanly shuts down the application
func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// promptForPassword prompts user for a new database password (first run)
func promptForPassword() (string, error) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Your billing data will be encrypted with a password.")
	fmt.Fprintln(os.Stderr, "This password will be stored in your system keyring.")
	fmt.Fprintln(os.Stderr)
	fmt.Fprint(os.Stderr, "Enter a password for database encryption: ")

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	return string(password), nil
}

// SaveConfig saves the current configuration to disk
func (a *App) SaveConfig() error {
	return a.Config.Save(config.DefaultConfigPath())
}

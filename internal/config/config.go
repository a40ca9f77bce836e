package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file
const (
	EnvDBPath           = "BILLABLE_DB_PATH"
	EnvMailClientSecret = "BILLABLE_MAIL_CLIENT_SECRET"
	EnvNATSURL          = "BILLABLE_NATS_URL"
	EnvLogLevel         = "BILLABLE_LOG_LEVEL"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Invoice  InvoiceConfig  `yaml:"invoice"`
	// Identity stamped on timer entries
	User    UserConfig    `yaml:"user"`
	Mail    MailConfig    `yaml:"mail"`
	Events  EventsConfig  `yaml:"events"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

type DatabaseConfig struct {
	Path      string `yaml:"path"`      // Path to SQLite database
	Encrypted bool   `yaml:"encrypted"` // Use SQLCipher with a key from the keyring
}

type InvoiceConfig struct {
	OutputDir    string `yaml:"output_dir"`    // Directory for generated PDFs
	NumberPrefix string `yaml:"number_prefix"` // Invoice number prefix (e.g., "INV")
	Currency     string `yaml:"currency"`      // Printed before amounts on documents
	EmailSubject string `yaml:"email_subject"` // Followed by the invoice number
	EmailBody    string `yaml:"email_body"`
}

type UserConfig struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

// MailConfig holds Microsoft Graph app credentials for sending invoices.
type MailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"` // Mailbox to send from
	GraphURL     string `yaml:"graph_url"`
}

type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"` // Empty disables publishing
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Dir returns ~/.config/billable
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir unavailable
		return filepath.Join(".", ".config", "billable")
	}
	return filepath.Join(homeDir, ".config", "billable")
}

// DefaultConfigPath returns ~/.config/billable/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(dir, "billable.db"),
		},
		Invoice: InvoiceConfig{
			OutputDir:    filepath.Join(dir, "invoices"),
			NumberPrefix: "INV",
			EmailSubject: "Invoice",
			EmailBody:    "Please find the attached invoice.",
		},
		Events: EventsConfig{
			SubjectPrefix: "billable",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load loads config from the given path, or returns defaults if the file
// doesn't exist. A .env file next to the config and one in the working
// directory are loaded first; environment overrides are applied last.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDefault loads from the default config path
func LoadDefault() (*Config, error) {
	return Load(DefaultConfigPath())
}

// loadDotEnv never overrides variables that are already set.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() {
	c.Database.Path = getEnv(EnvDBPath, c.Database.Path)
	c.Mail.ClientSecret = getEnv(EnvMailClientSecret, c.Mail.ClientSecret)
	c.Events.NATSURL = getEnv(EnvNATSURL, c.Events.NATSURL)
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// may hold the mail client secret
	return os.WriteFile(path, data, 0600)
}

// EnsureDirectories creates all necessary directories (for database, invoices, etc.)
func (c *Config) EnsureDirectories() error {
	dbDir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return err
	}

	if err := os.MkdirAll(c.Invoice.OutputDir, 0755); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses Log.Level, defaulting to warn.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// MailReady reports whether invoices can be emailed.
func (c *Config) MailReady() bool {
	m := c.Mail
	return m.Enabled && m.ClientID != "" && m.ClientSecret != "" && m.Sender != "" && m.TenantID != ""
}

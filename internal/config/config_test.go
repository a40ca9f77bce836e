package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvDBPath, EnvMailClientSecret, EnvNATSURL, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INV", cfg.Invoice.NumberPrefix)
	assert.Equal(t, "billable", cfg.Events.SubjectPrefix)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.False(t, cfg.MailReady())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Database.Path = "/tmp/x.db"
	cfg.Database.Encrypted = true
	cfg.Mail = MailConfig{Enabled: true, TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "me@example.com"}
	cfg.Log.Level = "debug"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.MailReady())
	assert.Equal(t, slog.LevelDebug, loaded.SlogLevel())
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /from/file.db\nlog:\n  level: info\n"), 0600))

	t.Setenv(EnvDBPath, "/from/env.db")
	t.Setenv(EnvNATSURL, "nats://localhost:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.Database.Path)
	assert.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDotEnvNextToConfig(t *testing.T) {
	clearEnv(t)
	// godotenv only fills variables that are unset, so make sure this one is.
	require.NoError(t, os.Unsetenv(EnvMailClientSecret))
	t.Cleanup(func() { os.Unsetenv(EnvMailClientSecret) })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvMailClientSecret+"=from-dotenv\n"), 0600))

	cfg, err := Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Mail.ClientSecret)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "db", "billable.db")
	cfg.Invoice.OutputDir = filepath.Join(dir, "out")
	require.NoError(t, cfg.EnsureDirectories())

	for _, d := range []string{filepath.Join(dir, "db"), filepath.Join(dir, "out")} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

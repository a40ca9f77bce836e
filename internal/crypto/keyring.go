// Package crypto stores the database encryption key outside the database.
package crypto

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// Keyring provides secure key storage abstraction
type Keyring interface {
	GetKey() (string, error)
	SetKey(password string) error
	DeleteKey() error
	IsAvailable() bool
}

const (
	ServiceName = "billable"
	KeyName     = "db-encryption-key"
	// EnvKey supplies the key where no system keyring is reachable (CI, headless Linux).
	EnvKey = "BILLABLE_DB_KEY"
)

var ErrKeyNotFound = errors.New("encryption key not found")

// NewKeyring returns a keyring that prefers BILLABLE_DB_KEY when it is set
// and otherwise uses the OS keyring (Keychain, Secret Service, Credential Manager).
func NewKeyring() Keyring {
	return &chainKeyring{env: envKeyring{}, system: systemKeyring{}}
}

type systemKeyring struct{}

func (systemKeyring) GetKey() (string, error) {
	key, err := keyring.Get(ServiceName, KeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w in system keyring", ErrKeyNotFound)
		}
		return "", fmt.Errorf("failed to retrieve key from keyring: %w", err)
	}
	if key == "" {
		return "", errors.New("encryption key is empty")
	}
	return key, nil
}

func (systemKeyring) SetKey(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if err := keyring.Set(ServiceName, KeyName, password); err != nil {
		return fmt.Errorf("failed to store key in keyring: %w", err)
	}
	return nil
}

func (systemKeyring) DeleteKey() error {
	if err := keyring.Delete(ServiceName, KeyName); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w in system keyring", ErrKeyNotFound)
		}
		return fmt.Errorf("failed to delete key from keyring: %w", err)
	}
	return nil
}

// IsAvailable checks the keyring with a throwaway entry
func (systemKeyring) IsAvailable() bool {
	const canary = "__billable_availability_test__"
	if err := keyring.Set(ServiceName, canary, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(ServiceName, canary)
	return true
}

type envKeyring struct{}

func (envKeyring) GetKey() (string, error) {
	key := os.Getenv(EnvKey)
	if key == "" {
		return "", fmt.Errorf("%w: %s not set", ErrKeyNotFound, EnvKey)
	}
	return key, nil
}

func (envKeyring) IsAvailable() bool {
	return os.Getenv(EnvKey) != ""
}

type chainKeyring struct {
	env    envKeyring
	system Keyring
}

func (k *chainKeyring) GetKey() (string, error) {
	if k.env.IsAvailable() {
		return k.env.GetKey()
	}
	return k.system.GetKey()
}

func (k *chainKeyring) SetKey(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if !k.system.IsAvailable() {
		return fmt.Errorf("no system keyring available: export %s to use the database", EnvKey)
	}
	return k.system.SetKey(password)
}

func (k *chainKeyring) DeleteKey() error {
	if k.env.IsAvailable() {
		return fmt.Errorf("key comes from %s: unset it manually", EnvKey)
	}
	return k.system.DeleteKey()
}

func (k *chainKeyring) IsAvailable() bool {
	return k.env.IsAvailable() || k.system.IsAvailable()
}

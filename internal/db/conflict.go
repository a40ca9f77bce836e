package db

import (
	"errors"
	"fmt"

	"github.com/andy/billable/internal/domain"
	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"
	"modernc.org/sqlite"
)

// Primary result codes. Extended codes such as SQLITE_BUSY_SNAPSHOT (517)
// carry the primary code in their low byte.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// IsBusy reports whether err is SQLite refusing a write lock: another
// connection holds it, or committed after this transaction took its snapshot.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var plain *sqlite.Error
	if errors.As(err, &plain) {
		code := plain.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}
	var cipher sqlite3.Error
	if errors.As(err, &cipher) {
		return cipher.Code == sqlite3.ErrBusy || cipher.Code == sqlite3.ErrLocked
	}
	return false
}

// Conflict tags a lost lock race as domain.ErrConcurrency so callers reload
// and retry. Other errors are returned unchanged.
func Conflict(err error) error {
	if !IsBusy(err) || errors.Is(err, domain.ErrConcurrency) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrConcurrency, err)
}

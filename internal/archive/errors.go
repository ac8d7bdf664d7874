package archive

import (
	"errors"
	"fmt"
)

// ErrInvalidTimezone is returned when a guild's timezone name does not
// resolve to a known zone.
var ErrInvalidTimezone = errors.New("invalid timezone")

// ErrPathEscapesVault is returned when a vault path or rendered filename
// template would place a file outside the guild's directory.
var ErrPathEscapesVault = errors.New("path escapes vault")

// StorageError reports a filesystem failure for a single archive operation.
// Missing files during purge are not StorageErrors.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

// ConfigLoadError reports an unreadable guild configuration table.
// Only stores running in strict mode return it; the default is to start
// with an empty table.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("loading guild config table %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

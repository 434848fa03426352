package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	gerrors "github.com/go-faster/errors"
)

var (
	ErrImportAlreadyRunning  = errors.New("import already running for this dataset")
	ErrImportBatchNotFound   = errors.New("import batch not found")
	ErrImportBatchFinalized  = errors.New("import batch already finalized")
	ErrNoSheetsToImport      = errors.New("no importable sheets found in upload")
	ErrUnsupportedFileFormat = errors.New("unsupported file format, use .xlsx or .csv")
)

// ValidationError reports required fields missing from a row.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field(s): %s", strings.Join(e.Fields, ", "))
}

// ResolutionError reports a referenced entity that does not exist and may not be created.
type ResolutionError struct {
	Entity string
	Key    string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// DuplicateError reports a natural key repeated within one batch.
type DuplicateError struct {
	Key      string
	FirstRow int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate key %q in upload (first seen on row %d)", e.Key, e.FirstRow)
}

// ConflictError reports a row whose identity matches a stored entity that
// belongs to something else. The stored entity is left untouched.
type ConflictError struct {
	Entity string
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q %s", e.Entity, e.Key, e.Reason)
}

// DateParseError is never fatal: the field is cleared and a warning recorded.
type DateParseError struct {
	Field string
	Value string
}

func (e *DateParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unrecognized date %q", e.Value)
	}
	return fmt.Sprintf("%s: unrecognized date %q", e.Field, e.Value)
}

// PersistenceError wraps a storage failure. It aborts the batch unless the
// savepoint failure policy downgrades it to a row error.
type PersistenceError struct {
	BatchID string
	Sheet   string
	Row     int
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("batch %s: sheet %q row %d: %v", e.BatchID, e.Sheet, e.Row, e.Err)
	}
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Err: gerrors.Wrap(err, op)}
}

// isRowLevelError reports whether err only affects the current row.
func isRowLevelError(err error) bool {
	var (
		ve *ValidationError
		re *ResolutionError
		de *DuplicateError
		ce *ConflictError
	)
	return errors.As(err, &ve) || errors.As(err, &re) || errors.As(err, &de) || errors.As(err, &ce)
}

// IsConnectivityError reports failures that stay fatal under every failure
// policy. They are also the only ones worth retrying.
func IsConnectivityError(err error) bool {
	var ne net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &ne)
}

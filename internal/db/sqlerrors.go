package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrRetriesExceeded is returned when a transaction kept failing with
	// a busy database.
	ErrRetriesExceeded = errors.New("db tx retries exceeded")
)

// MapSQLError classifies a sqlite error into one of the driver agnostic
// error types below. Other errors pass through untouched.
func MapSQLError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return parseSqliteError(sqliteErr)
	}

	return err
}

func parseSqliteError(sqliteErr sqlite3.Error) error {
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique,
			sqlite3.ErrConstraintPrimaryKey:

			return &ErrSQLUniqueConstraintViolation{
				DBError: sqliteErr,
			}

		case sqlite3.ErrConstraintForeignKey:
			return &ErrSQLForeignKeyViolation{DBError: sqliteErr}
		}

		return fmt.Errorf("sqlite constraint error: %w", sqliteErr)

	// Another connection holds the write lock.
	case sqlite3.ErrBusy:
		return &ErrSerializationError{DBError: sqliteErr}

	// Conflict within the same connection.
	case sqlite3.ErrLocked:
		return &ErrDeadlockError{DBError: sqliteErr}

	case sqlite3.ErrError:
		if strings.Contains(sqliteErr.Error(), "no such table") {
			return &ErrSchemaError{DBError: sqliteErr}
		}

		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)

	default:
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)
	}
}

// ErrSQLUniqueConstraintViolation is a unique or primary key violation.
type ErrSQLUniqueConstraintViolation struct {
	DBError error
}

func (e *ErrSQLUniqueConstraintViolation) Error() string {
	return fmt.Sprintf("sql unique constraint violation: %v", e.DBError)
}

func (e *ErrSQLUniqueConstraintViolation) Unwrap() error {
	return e.DBError
}

// ErrSQLForeignKeyViolation is a reference to a missing row.
type ErrSQLForeignKeyViolation struct {
	DBError error
}

func (e *ErrSQLForeignKeyViolation) Error() string {
	return fmt.Sprintf("sql foreign key violation: %v", e.DBError)
}

func (e *ErrSQLForeignKeyViolation) Unwrap() error {
	return e.DBError
}

// ErrSerializationError means the transaction lost a race for the write
// lock and may be retried.
type ErrSerializationError struct {
	DBError error
}

func (e *ErrSerializationError) Unwrap() error {
	return e.DBError
}

func (e *ErrSerializationError) Error() string {
	return e.DBError.Error()
}

// ErrDeadlockError means the transaction conflicted with another one on
// the same connection and may be retried.
type ErrDeadlockError struct {
	DBError error
}

func (e *ErrDeadlockError) Unwrap() error {
	return e.DBError
}

func (e *ErrDeadlockError) Error() string {
	return e.DBError.Error()
}

// ErrSchemaError means the schema does not match the query, usually an
// unmigrated database.
type ErrSchemaError struct {
	DBError error
}

func (e *ErrSchemaError) Unwrap() error {
	return e.DBError
}

func (e *ErrSchemaError) Error() string {
	return e.DBError.Error()
}

// IsUniqueConstraintViolation reports whether err is a unique violation.
func IsUniqueConstraintViolation(err error) bool {
	var target *ErrSQLUniqueConstraintViolation
	return errors.As(err, &target)
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	var target *ErrSQLForeignKeyViolation
	return errors.As(err, &target)
}

// IsSerializationError reports whether err is a retryable busy error.
func IsSerializationError(err error) bool {
	var target *ErrSerializationError
	return errors.As(err, &target)
}

// IsDeadlockError reports whether err is a retryable locked error.
func IsDeadlockError(err error) bool {
	var target *ErrDeadlockError
	return errors.As(err, &target)
}

// IsSerializationOrDeadlockError reports whether a transaction failing with
// err may be retried.
func IsSerializationOrDeadlockError(err error) bool {
	return IsDeadlockError(err) || IsSerializationError(err)
}

// IsSchemaError reports whether err is a schema mismatch.
func IsSchemaError(err error) bool {
	var target *ErrSchemaError
	return errors.As(err, &target)
}

package services

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error codes shared by every service. Controllers map them to HTTP statuses.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeConcurrencyTimeout = "CONCURRENCY_TIMEOUT"
	CodeInsufficientStock  = "INSUFFICIENT_STOCK"
)

// ServiceError is the error type returned by business operations.
type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches any ServiceError carrying the same code.
func (e *ServiceError) Is(target error) bool {
	var t *ServiceError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &ServiceError{Code: CodeValidation, Message: "validation failed"}
	ErrNotFound           = &ServiceError{Code: CodeNotFound, Message: "resource not found"}
	ErrConflict           = &ServiceError{Code: CodeConflict, Message: "resource already exists"}
	ErrConcurrencyTimeout = &ServiceError{Code: CodeConcurrencyTimeout, Message: "timed out waiting for a lock"}
	ErrInsufficientStock  = &ServiceError{Code: CodeInsufficientStock, Message: "not enough stock"}
)

func validationError(format string, args ...interface{}) error {
	return &ServiceError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(what string) error {
	return &ServiceError{Code: CodeNotFound, Message: what + " not found"}
}

func conflictError(message string, cause error) error {
	return &ServiceError{Code: CodeConflict, Message: message, Err: cause}
}

func insufficientStockError(format string, args ...interface{}) error {
	return &ServiceError{Code: CodeInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

// PostgreSQL SQLSTATE codes we classify.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgQueryCanceled    = "57014"
	pgDeadlock         = "40P01"
	pgSerialization    = "40001"
)

// isUniqueViolation recognises duplicate keys from both PostgreSQL and SQLite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isLockTimeout recognises PostgreSQL failures a caller can retry: lock and
// statement timeouts, deadlocks and serialization failures.
func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgQueryCanceled, pgDeadlock, pgSerialization:
			return true
		}
	}
	return false
}

// classifyStoreError converts driver errors into service errors, leaving others untouched.
func classifyStoreError(err error, conflictMessage string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &ServiceError{Code: CodeNotFound, Message: "resource not found", Err: err}
	case isUniqueViolation(err):
		return conflictError(conflictMessage, err)
	case isLockTimeout(err):
		return &ServiceError{Code: CodeConcurrencyTimeout, Message: "timed out waiting for a lock", Err: err}
	default:
		return err
	}
}

// classifyTxError is applied to the error a whole transaction returned. Service
// errors pass through; a lock failure from any statement becomes ConcurrencyTimeout.
func classifyTxError(err error) error {
	var svcErr *ServiceError
	if err == nil || errors.As(err, &svcErr) {
		return err
	}
	if isLockTimeout(err) {
		return &ServiceError{Code: CodeConcurrencyTimeout, Message: "timed out waiting for a lock", Err: err}
	}
	return err
}

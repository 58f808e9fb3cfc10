package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrorCategory is a stable label for store errors in metrics and logs.
type ErrorCategory string

const (
	ErrorCategoryCanceled      ErrorCategory = "canceled"
	ErrorCategoryBusy          ErrorCategory = "busy"
	ErrorCategoryReadOnly      ErrorCategory = "readonly"
	ErrorCategoryUnavailable   ErrorCategory = "unavailable"
	ErrorCategoryCorrupt       ErrorCategory = "corrupt"
	ErrorCategorySchema        ErrorCategory = "schema"
	ErrorCategorySessionClosed ErrorCategory = "session_closed"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// CategorizeError maps a store error to an ErrorCategory. It returns "" for nil.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryCanceled
	}
	if errors.Is(err, ErrSessionClosed) {
		return ErrorCategorySessionClosed
	}
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		return ErrorCategorySchema
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return ErrorCategoryBusy
		case sqlite3.ErrReadonly:
			return ErrorCategoryReadOnly
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB:
			return ErrorCategoryUnavailable
		case sqlite3.ErrCorrupt:
			return ErrorCategoryCorrupt
		case sqlite3.ErrError:
			if strings.Contains(sqliteErr.Error(), "no such") {
				return ErrorCategorySchema
			}
		}
	}

	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return ErrorCategoryUnavailable
	}
	return ErrorCategoryUnknown
}

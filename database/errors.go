/*
 * Copyright 2025 the storekit authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// Error taxonomy surfaced to callers. Constraint and transition violations
// are never retried by this layer; timeouts and pool exhaustion are
// candidates for caller-side retry with backoff; a concurrency conflict
// requires a fresh session and a re-read of state.
var (
	ErrConfiguration       = errors.New("invalid database configuration")
	ErrTimeout             = errors.New("database operation timed out")
	ErrPoolExhausted       = errors.New("connection pool exhausted")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConcurrency         = errors.New("concurrent commit conflict")
	ErrTransaction         = errors.New("transaction no longer usable")
	ErrInvalidTransition   = errors.New("invalid order status transition")
)

// ConfigurationError wraps a configuration problem with ErrConfiguration.
func ConfigurationError(msg string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrConfiguration, msg, cause)
	}
	return fmt.Errorf("%w: %s", ErrConfiguration, msg)
}

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	DeadlockErr
	SerializationErr
	LockTimeoutErr
)

// IsSqlError classifies a driver error into a dialect-independent class.
// MySQL reports typed errors with numeric codes; postgres and sqlite are
// matched on SQLSTATE markers and message substrings.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if errors.Is(err, sql.ErrNoRows) {
		return true, NoRowsErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062:
			return true, DuplicateKeyErr
		case 1048:
			return true, NotNullViolationErr
		case 1216, 1217, 1451, 1452:
			return true, ForeignKeyViolationErr
		case 3819:
			return true, CheckConstraintViolationErr
		case 1265:
			return true, DataTruncatedErr
		case 1213:
			return true, DeadlockErr
		case 1205:
			return true, LockTimeoutErr
		case 1146:
			return true, NoTableErr
		case 1050:
			return true, ExistTableErr
		default:
			return true, UnknownErr
		}
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "sqlstate 40001") ||
		strings.Contains(s, "could not serialize access") {
		return true, SerializationErr
	}
	if strings.Contains(s, "sqlstate 40p01") ||
		strings.Contains(s, "deadlock detected") {
		return true, DeadlockErr
	}
	if strings.Contains(s, "database is locked") ||
		strings.Contains(s, "database table is locked") {
		return true, LockTimeoutErr
	}
	if strings.Contains(s, "duplicate key value") ||
		strings.Contains(s, "unique constraint failed") ||
		strings.Contains(s, "sqlstate 23505") {
		return true, DuplicateKeyErr
	}
	if strings.Contains(s, "not-null constraint") ||
		strings.Contains(s, "sqlstate 23502") ||
		strings.Contains(s, "not null constraint failed") {
		return true, NotNullViolationErr
	}
	if strings.Contains(s, "foreign key violation") ||
		strings.Contains(s, "foreign key constraint failed") ||
		strings.Contains(s, "violates foreign key constraint") ||
		strings.Contains(s, "sqlstate 23503") {
		return true, ForeignKeyViolationErr
	}
	if strings.Contains(s, "check constraint") ||
		strings.Contains(s, "sqlstate 23514") {
		return true, CheckConstraintViolationErr
	}
	if strings.Contains(s, "string data right truncation") ||
		strings.Contains(s, "sqlstate 22001") ||
		strings.Contains(s, "data truncated") {
		return true, DataTruncatedErr
	}
	if strings.Contains(s, "sqlstate 42p01") ||
		strings.Contains(s, "undefined table") ||
		strings.Contains(s, "no such table") {
		return true, NoTableErr
	}
	if strings.Contains(s, "already exists") &&
		(strings.Contains(s, "table") || strings.Contains(s, "relation")) {
		return true, ExistTableErr
	}
	return false, UnknownErr
}

// WrapDBError maps a raw driver error onto the error taxonomy. Errors that
// fall outside the taxonomy are returned unchanged.
func WrapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrTransaction, err)
	}
	if ok, class := IsSqlError(err); ok {
		switch class {
		case DuplicateKeyErr, NotNullViolationErr, ForeignKeyViolationErr,
			CheckConstraintViolationErr, DataTruncatedErr:
			return fmt.Errorf("%w: %v", ErrConstraintViolation, err)
		case DeadlockErr, SerializationErr:
			return fmt.Errorf("%w: %v", ErrConcurrency, err)
		case LockTimeoutErr:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	return err
}

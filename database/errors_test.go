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
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlErrorClassifiesMySQLNumbers(t *testing.T) {
	cases := []struct {
		number uint16
		want   SQLError
	}{
		{1062, DuplicateKeyErr},
		{1048, NotNullViolationErr},
		{1452, ForeignKeyViolationErr},
		{3819, CheckConstraintViolationErr},
		{1213, DeadlockErr},
		{1205, LockTimeoutErr},
		{1146, NoTableErr},
		{1050, ExistTableErr},
	}
	for _, tc := range cases {
		ok, class := IsSqlError(&mysql.MySQLError{Number: tc.number})
		assert.True(t, ok, "number %d", tc.number)
		assert.Equal(t, tc.want, class, "number %d", tc.number)
	}
}

func TestIsSqlErrorClassifiesMessages(t *testing.T) {
	cases := []struct {
		message string
		want    SQLError
	}{
		{"ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)", DuplicateKeyErr},
		{"UNIQUE constraint failed: reviews.user_id, reviews.product_id", DuplicateKeyErr},
		{"NOT NULL constraint failed: products.category_id", NotNullViolationErr},
		{"FOREIGN KEY constraint failed", ForeignKeyViolationErr},
		{"ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)", SerializationErr},
		{"ERROR: deadlock detected (SQLSTATE 40P01)", DeadlockErr},
		{"database is locked", LockTimeoutErr},
		{"no such table: orders", NoTableErr},
	}
	for _, tc := range cases {
		ok, class := IsSqlError(errors.New(tc.message))
		assert.True(t, ok, tc.message)
		assert.Equal(t, tc.want, class, tc.message)
	}
}

func TestWrapDBErrorMapsToTaxonomy(t *testing.T) {
	assert.NoError(t, WrapDBError(nil))

	assert.ErrorIs(t, WrapDBError(context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, WrapDBError(fmt.Errorf("begin: %w", context.Canceled)), ErrTimeout)
	assert.ErrorIs(t, WrapDBError(sql.ErrTxDone), ErrTransaction)
	assert.ErrorIs(t, WrapDBError(&mysql.MySQLError{Number: 1062}), ErrConstraintViolation)
	assert.ErrorIs(t, WrapDBError(errors.New("UNIQUE constraint failed: users.handle")), ErrConstraintViolation)
	assert.ErrorIs(t, WrapDBError(errors.New("deadlock detected")), ErrConcurrency)
	assert.ErrorIs(t, WrapDBError(errors.New("database is locked")), ErrTimeout)

	// Errors outside the taxonomy pass through unchanged.
	opaque := errors.New("wire cut")
	assert.Same(t, opaque, WrapDBError(opaque))
}

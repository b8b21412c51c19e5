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

// Package store implements the commerce operations over the relational data
// model. Every operation runs inside the transaction of the session the
// store is bound to; nothing here touches the pool directly.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/storekit/storekit/database"
	"github.com/uptrace/bun"
)

// ErrNotFound reports that a referenced entity does not exist.
var ErrNotFound = errors.New("resource not found")

// Store groups the commerce operations of one unit of work.
type Store struct {
	session *database.Session
}

// New binds a store to a session. The store lives exactly as long as the
// session's unit of work.
func New(session *database.Session) *Store {
	return &Store{session: session}
}

// Session returns the underlying unit of work.
func (s *Store) Session() *database.Session {
	return s.session
}

func (s *Store) db(ctx context.Context) (bun.IDB, error) {
	return s.session.DB(ctx)
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return database.WrapDBError(err)
}

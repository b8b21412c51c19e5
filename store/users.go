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

package store

import (
	"context"

	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/models"
)

// CreateUser inserts a new user. A duplicate handle yields a constraint
// violation error.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	if _, err := idb.NewInsert().Model(user).Exec(ctx); err != nil {
		return database.WrapDBError(err)
	}
	return nil
}

// GetUser loads a user by primary key. Soft-deleted users are not returned.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	user := new(models.User)
	if err := idb.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return user, nil
}

// GetUserByHandle loads a user by its unique handle.
func (s *Store) GetUserByHandle(ctx context.Context, handle string) (*models.User, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	user := new(models.User)
	if err := idb.NewSelect().Model(user).Where("u.handle = ?", handle).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return user, nil
}

// DeactivateUser soft-deletes a user. The row stays in place with its
// deleted_at stamped, so historical orders and reviews keep their owner.
func (s *Store) DeactivateUser(ctx context.Context, id int64) error {
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := idb.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

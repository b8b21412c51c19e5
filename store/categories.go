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
	"fmt"

	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/models"
)

// CreateCategory inserts a new category, generating a slug from the name
// when none is set.
func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := category.Validate(); err != nil {
		return err
	}
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	if _, err := idb.NewInsert().Model(category).Exec(ctx); err != nil {
		return database.WrapDBError(err)
	}
	return nil
}

// GetCategory loads a category by primary key.
func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	category := new(models.Category)
	if err := idb.NewSelect().Model(category).Where("c.id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return category, nil
}

// GetCategoryBySlug loads a category by its unique slug.
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	category := new(models.Category)
	if err := idb.NewSelect().Model(category).Where("c.slug = ?", slug).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return category, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var categories []models.Category
	if err := idb.NewSelect().Model(&categories).Order("name ASC").Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return categories, nil
}

// DeleteCategory removes a category. A category that still has products
// cannot be deleted; the check runs in the same transaction, with the
// database-level restrict policy as backstop.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	count, err := idb.NewSelect().Model((*models.Product)(nil)).Where("category_id = ?", id).Count(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if count > 0 {
		return fmt.Errorf("category %d has %d products: %w", id, count, database.ErrConstraintViolation)
	}
	res, err := idb.NewDelete().Model((*models.Category)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

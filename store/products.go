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

	"github.com/shopspring/decimal"
	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/models"
	"github.com/storekit/storekit/types"
)

// CreateProduct inserts a new product after validating price, stock and
// category reference.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	exists, err := idb.NewSelect().Model((*models.Category)(nil)).
		Where("id = ?", product.CategoryID).Exists(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if !exists {
		return fmt.Errorf("category %d: %w", product.CategoryID, ErrNotFound)
	}
	if _, err := idb.NewInsert().Model(product).Exec(ctx); err != nil {
		return database.WrapDBError(err)
	}
	return nil
}

// GetProduct loads a product with its category.
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	product := new(models.Product)
	if err := idb.NewSelect().Model(product).Relation("Category").
		Where("p.id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return product, nil
}

// GetProductBySlug loads a product by its unique slug.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	product := new(models.Product)
	if err := idb.NewSelect().Model(product).Relation("Category").
		Where("p.slug = ?", slug).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return product, nil
}

// ListProducts pages through products, newest first unless the request
// orders otherwise. The filter schema is a WHERE fragment such as
// "category_id = ? AND featured = ?".
func (s *Store) ListProducts(ctx context.Context, page *types.PageRequest) (*types.Pagination[models.Product], error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var products []*models.Product
	query := idb.NewSelect().Model(&products)
	if filter := page.GetFilter(); filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	total, err := query.Count(ctx)
	if err != nil {
		return nil, database.WrapDBError(err)
	}
	orders := page.GetOrders()
	if len(orders) == 0 {
		orders = []string{"created_at DESC"}
	}
	for _, order := range orders {
		query = query.Order(order)
	}
	if err := query.Offset(page.GetOffset()).Limit(page.GetPageSize()).Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return &types.Pagination[models.Product]{
		Page:     page.GetPage(),
		PageSize: page.GetPageSize(),
		Total:    total,
		Items:    products,
	}, nil
}

// UpdatePrice changes a product's live price. Existing order items keep the
// unit price captured at the time of sale.
func (s *Store) UpdatePrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative: %w", database.ErrConstraintViolation)
	}
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := idb.NewUpdate().Model((*models.Product)(nil)).
		Set("price = ?", price).
		Where("id = ?", productID).
		Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock moves a product's stock by delta, which may be negative. The
// update is guarded so stock never goes below zero; a decrement past the
// available quantity fails with a constraint violation.
func (s *Store) AdjustStock(ctx context.Context, productID int64, delta int) error {
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := idb.NewUpdate().Model((*models.Product)(nil)).
		Set("stock = stock + ?", delta).
		Where("id = ?", productID).
		Where("stock + ? >= 0", delta).
		Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		exists, err := idb.NewSelect().Model((*models.Product)(nil)).
			Where("id = ?", productID).Exists(ctx)
		if err != nil {
			return database.WrapDBError(err)
		}
		if !exists {
			return fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return fmt.Errorf("insufficient stock for product %d: %w", productID, database.ErrConstraintViolation)
	}
	return nil
}

// SetFeatured toggles the featured flag of a product.
func (s *Store) SetFeatured(ctx context.Context, productID int64, featured bool) error {
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := idb.NewUpdate().Model((*models.Product)(nil)).
		Set("featured = ?", featured).
		Where("id = ?", productID).
		Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product. Products referenced by order items or
// reviews cannot be deleted; historical data wins.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	referenced, err := idb.NewSelect().Model((*models.OrderItem)(nil)).
		Where("product_id = ?", id).Exists(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if !referenced {
		referenced, err = idb.NewSelect().Model((*models.Review)(nil)).
			Where("product_id = ?", id).Exists(ctx)
		if err != nil {
			return database.WrapDBError(err)
		}
	}
	if referenced {
		return fmt.Errorf("product %d is referenced by orders or reviews: %w", id, database.ErrConstraintViolation)
	}
	res, err := idb.NewDelete().Model((*models.Product)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

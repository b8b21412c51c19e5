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

// CreateReview records a user's rating of a product. A user gets one review
// per product; a second attempt trips the unique constraint and surfaces as
// a constraint violation.
func (s *Store) CreateReview(ctx context.Context, review *models.Review) error {
	if err := review.Validate(); err != nil {
		return err
	}
	if _, err := s.GetUser(ctx, review.UserID); err != nil {
		return fmt.Errorf("user %d: %w", review.UserID, err)
	}
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	exists, err := idb.NewSelect().Model((*models.Product)(nil)).
		Where("id = ?", review.ProductID).Exists(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if !exists {
		return fmt.Errorf("product %d: %w", review.ProductID, ErrNotFound)
	}
	if _, err := idb.NewInsert().Model(review).Exec(ctx); err != nil {
		return database.WrapDBError(err)
	}
	return nil
}

// ListProductReviews returns a product's reviews, newest first.
func (s *Store) ListProductReviews(ctx context.Context, productID int64) ([]models.Review, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var reviews []models.Review
	if err := idb.NewSelect().Model(&reviews).
		Where("r.product_id = ?", productID).
		Order("r.created_at DESC").
		Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return reviews, nil
}

// ProductRating returns a product's average rating and review count.
func (s *Store) ProductRating(ctx context.Context, productID int64) (avg float64, count int, err error) {
	idb, err := s.db(ctx)
	if err != nil {
		return 0, 0, err
	}
	count, err = idb.NewSelect().Model((*models.Review)(nil)).
		Where("product_id = ?", productID).Count(ctx)
	if err != nil {
		return 0, 0, database.WrapDBError(err)
	}
	if count == 0 {
		return 0, 0, nil
	}
	err = idb.NewSelect().Model((*models.Review)(nil)).
		ColumnExpr("avg(rating)").
		Where("product_id = ?", productID).
		Scan(ctx, &avg)
	if err != nil {
		return 0, 0, database.WrapDBError(err)
	}
	return avg, count, nil
}

// DeleteReview removes a review by primary key.
func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := idb.NewDelete().Model((*models.Review)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

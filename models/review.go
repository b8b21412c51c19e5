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

package models

import (
	"fmt"
	"time"

	"github.com/storekit/storekit/database"
	"github.com/uptrace/bun"
)

// Rating bounds for reviews.
const (
	RatingMin = 1
	RatingMax = 5
)

// Review is feedback left by a user on a product. At most one review per
// (user, product) pair, enforced by a composite unique index.
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:r"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull,unique:uq_reviews_user_product" json:"user_id"`
	ProductID int64     `bun:"product_id,notnull,unique:uq_reviews_user_product" json:"product_id"`
	Rating    int       `bun:"rating,notnull" json:"rating"`
	Title     string    `bun:"title" json:"title,omitempty"`
	Body      string    `bun:"body" json:"body,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	User    *User    `bun:"rel:belongs-to,join:user_id=id,on_delete:RESTRICT" json:"user,omitempty"`
	Product *Product `bun:"rel:belongs-to,join:product_id=id,on_delete:RESTRICT" json:"-"`
}

// Validate checks the review's attributes before persistence.
func (r *Review) Validate() error {
	if r.UserID == 0 || r.ProductID == 0 {
		return fmt.Errorf("%w: review requires a user and a product", database.ErrConstraintViolation)
	}
	if r.Rating < RatingMin || r.Rating > RatingMax {
		return fmt.Errorf("%w: review rating must be between %d and %d, got %d",
			database.ErrConstraintViolation, RatingMin, RatingMax, r.Rating)
	}
	return nil
}

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
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/types"
	"github.com/uptrace/bun"
)

// Product is a purchasable item. Price and stock are never negative.
// Changing a product's price does not touch historical order items; the
// unit price there is a snapshot taken at sale time.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          int64             `bun:"id,pk,autoincrement" json:"id"`
	Name        string            `bun:"name,notnull" json:"name"`
	Slug        string            `bun:"slug,notnull,unique" json:"slug"`
	Description string            `bun:"description" json:"description"`
	Price       decimal.Decimal   `bun:"price,notnull,type:decimal(10,2)" json:"price"`
	Stock       int               `bun:"stock,notnull,default:0" json:"stock"`
	CategoryID  int64             `bun:"category_id,notnull" json:"category_id"`
	Images      types.StringArray `bun:"images,type:text" json:"images,omitempty"`
	Attributes  types.JsonObject  `bun:"attributes,type:text" json:"attributes,omitempty"`
	Featured    bool              `bun:"featured,notnull,default:false" json:"featured"`
	CreatedAt   time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id,on_delete:RESTRICT" json:"category,omitempty"`
	Reviews  []*Review `bun:"rel:has-many,join:id=product_id" json:"reviews,omitempty"`
}

// Validate checks the product's attributes before persistence.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name must not be empty", database.ErrConstraintViolation)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: product price must not be negative, got %s", database.ErrConstraintViolation, p.Price)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: product stock must not be negative, got %d", database.ErrConstraintViolation, p.Stock)
	}
	if p.CategoryID == 0 {
		return fmt.Errorf("%w: product requires a category", database.ErrConstraintViolation)
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	return nil
}

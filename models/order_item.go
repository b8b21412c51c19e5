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

	"github.com/shopspring/decimal"
	"github.com/storekit/storekit/database"
	"github.com/uptrace/bun"
)

// OrderItem is a line item within an order. UnitPrice is a snapshot taken
// at sale time and never recomputed from the live product. The order
// reference cascades on delete; the product reference restricts, so a
// product with sale history cannot be removed.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID        int64           `bun:"id,pk,autoincrement" json:"id"`
	OrderID   int64           `bun:"order_id,notnull" json:"order_id"`
	ProductID int64           `bun:"product_id,notnull" json:"product_id"`
	Quantity  int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice decimal.Decimal `bun:"unit_price,notnull,type:decimal(10,2)" json:"unit_price"`

	Order   *Order   `bun:"rel:belongs-to,join:order_id=id,on_delete:CASCADE" json:"-"`
	Product *Product `bun:"rel:belongs-to,join:product_id=id,on_delete:RESTRICT" json:"product,omitempty"`
}

// Subtotal returns unit price times quantity.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the line item's attributes before persistence.
func (i *OrderItem) Validate() error {
	if i.ProductID == 0 {
		return fmt.Errorf("%w: order item requires a product", database.ErrConstraintViolation)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("%w: order item quantity must be at least 1, got %d", database.ErrConstraintViolation, i.Quantity)
	}
	if i.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: order item unit price must not be negative, got %s", database.ErrConstraintViolation, i.UnitPrice)
	}
	return nil
}

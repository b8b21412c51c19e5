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
	"github.com/storekit/storekit/database"
)

// Table creation order: referenced tables first.
const (
	priorityUsers      = 10
	priorityCategories = 11
	priorityProducts   = 20
	priorityOrders     = 30
	priorityOrderItems = 40
	priorityReviews    = 41
)

func init() {
	database.RegisterModel(database.NewModel((*User)(nil), priorityUsers))
	database.RegisterModel(database.NewModel((*Category)(nil), priorityCategories))
	database.RegisterModel(database.NewModel((*Product)(nil), priorityProducts))
	database.RegisterModel(database.NewModel((*Order)(nil), priorityOrders))
	database.RegisterModel(database.NewModel((*OrderItem)(nil), priorityOrderItems))
	database.RegisterModel(database.NewModel((*Review)(nil), priorityReviews))

	// Ownership model: orders own their items (cascade); users, products,
	// and categories are referenced history and restrict deletion.
	database.RegisterForeignKeys(
		database.ForeignKeyConstraint{Table: "products", Column: "category_id", ReferenceTable: "categories", ReferenceColumn: "id", OnDelete: "RESTRICT"},
		database.ForeignKeyConstraint{Table: "orders", Column: "user_id", ReferenceTable: "users", ReferenceColumn: "id", OnDelete: "RESTRICT"},
		database.ForeignKeyConstraint{Table: "order_items", Column: "order_id", ReferenceTable: "orders", ReferenceColumn: "id", OnDelete: "CASCADE"},
		database.ForeignKeyConstraint{Table: "order_items", Column: "product_id", ReferenceTable: "products", ReferenceColumn: "id", OnDelete: "RESTRICT"},
		database.ForeignKeyConstraint{Table: "reviews", Column: "user_id", ReferenceTable: "users", ReferenceColumn: "id", OnDelete: "RESTRICT"},
		database.ForeignKeyConstraint{Table: "reviews", Column: "product_id", ReferenceTable: "products", ReferenceColumn: "id", OnDelete: "RESTRICT"},
	)

	database.RegisterChecks(
		database.CheckConstraint{Table: "products", Name: "ck_products_price_non_negative", Expr: "price >= 0"},
		database.CheckConstraint{Table: "products", Name: "ck_products_stock_non_negative", Expr: "stock >= 0"},
		database.CheckConstraint{Table: "orders", Name: "ck_orders_total_non_negative", Expr: "total >= 0"},
		database.CheckConstraint{Table: "order_items", Name: "ck_order_items_quantity_positive", Expr: "quantity >= 1"},
		database.CheckConstraint{Table: "order_items", Name: "ck_order_items_unit_price_non_negative", Expr: "unit_price >= 0"},
		database.CheckConstraint{Table: "reviews", Name: "ck_reviews_rating_range", Expr: "rating BETWEEN 1 AND 5"},
	)
}

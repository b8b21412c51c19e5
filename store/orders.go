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

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/models"
)

// OrderLine describes one requested position of a new order. When UnitPrice
// is nil the product's live price is captured at the time of sale; an
// explicit value overrides it, which is how discounts are applied.
type OrderLine struct {
	ProductID int64
	Quantity  int
	UnitPrice *decimal.Decimal
}

// CreateOrder places an order for a user. Each line snapshots its unit
// price, decrements the product's stock with a guard against overselling,
// and the order total is the sum over qty * unit_price. The whole placement
// is one atomic write.
func (s *Store) CreateOrder(ctx context.Context, userID int64, lines []OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order needs at least one line: %w", database.ErrConstraintViolation)
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Number:  uuid.NewString(),
		UserID:  user.ID,
		Status:  models.OrderStatusPending,
		Version: 1,
	}
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("product %d: quantity must be at least 1: %w",
				line.ProductID, database.ErrConstraintViolation)
		}
		product := new(models.Product)
		if err := idb.NewSelect().Model(product).Where("p.id = ?", line.ProductID).Scan(ctx); err != nil {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, notFoundOr(err))
		}
		unitPrice := product.Price
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		if unitPrice.IsNegative() {
			return nil, fmt.Errorf("product %d: unit price must not be negative: %w",
				line.ProductID, database.ErrConstraintViolation)
		}
		if err := s.AdjustStock(ctx, product.ID, -line.Quantity); err != nil {
			return nil, err
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
		})
	}

	order.Items = make([]*models.OrderItem, len(items))
	for i := range items {
		order.Items[i] = &items[i]
	}
	order.Total = order.ComputeTotal()
	if _, err := idb.NewInsert().Model(order).Exec(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if _, err := idb.NewInsert().Model(&items).Exec(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return order, nil
}

// GetOrder loads an order with its items.
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	order := new(models.Order)
	if err := idb.NewSelect().Model(order).Relation("Items").
		Where("o.id = ?", id).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return order, nil
}

// GetOrderByNumber loads an order with its items by the public order number.
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	order := new(models.Order)
	if err := idb.NewSelect().Model(order).Relation("Items").
		Where("o.number = ?", number).Scan(ctx); err != nil {
		return nil, notFoundOr(err)
	}
	return order, nil
}

// ListUserOrders returns a user's orders with items, newest first.
func (s *Store) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := idb.NewSelect().Model(&orders).Relation("Items").
		Where("o.user_id = ?", userID).
		Order("o.created_at DESC").
		Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return orders, nil
}

// AddItem appends a line to a pending order and brings the stored total back
// in line with the items. The order's version column fences concurrent
// writers.
func (s *Store) AddItem(ctx context.Context, orderID int64, line OrderLine) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %d is %s, items can only change while pending: %w",
			orderID, order.Status, database.ErrConstraintViolation)
	}
	if line.Quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1: %w", database.ErrConstraintViolation)
	}
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	product := new(models.Product)
	if err := idb.NewSelect().Model(product).Where("p.id = ?", line.ProductID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("product %d: %w", line.ProductID, notFoundOr(err))
	}
	unitPrice := product.Price
	if line.UnitPrice != nil {
		unitPrice = *line.UnitPrice
	}
	item := &models.OrderItem{
		OrderID:   order.ID,
		ProductID: product.ID,
		Quantity:  line.Quantity,
		UnitPrice: unitPrice,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.AdjustStock(ctx, product.ID, -line.Quantity); err != nil {
		return nil, err
	}
	if _, err := idb.NewInsert().Model(item).Exec(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	order.Items = append(order.Items, item)
	return s.storeTotal(ctx, order)
}

// RemoveItem drops a line from a pending order, restores the product's
// stock and recomputes the stored total.
func (s *Store) RemoveItem(ctx context.Context, orderID, itemID int64) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %d is %s, items can only change while pending: %w",
			orderID, order.Status, database.ErrConstraintViolation)
	}
	var removed *models.OrderItem
	kept := order.Items[:0]
	for _, item := range order.Items {
		if item.ID == itemID {
			removed = item
			continue
		}
		kept = append(kept, item)
	}
	if removed == nil {
		return nil, fmt.Errorf("order %d has no item %d: %w", orderID, itemID, ErrNotFound)
	}
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := idb.NewDelete().Model((*models.OrderItem)(nil)).
		Where("id = ?", itemID).Exec(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	if err := s.AdjustStock(ctx, removed.ProductID, removed.Quantity); err != nil {
		return nil, err
	}
	order.Items = kept
	return s.storeTotal(ctx, order)
}

// storeTotal recomputes the total from the in-memory items and writes it
// behind the version fence.
func (s *Store) storeTotal(ctx context.Context, order *models.Order) (*models.Order, error) {
	idb, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	total := order.ComputeTotal()
	res, err := idb.NewUpdate().Model((*models.Order)(nil)).
		Set("total = ?", total).
		Set("version = version + 1").
		Where("id = ?", order.ID).
		Where("version = ?", order.Version).
		Exec(ctx)
	if err != nil {
		return nil, database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("order %d was modified concurrently: %w", order.ID, database.ErrConcurrency)
	}
	order.Total = total
	order.Version++
	return order, nil
}

// TransitionStatus moves an order to the next lifecycle status. It loads
// the current row and applies the transition against the version it
// observed.
func (s *Store) TransitionStatus(ctx context.Context, orderID int64, next models.OrderStatus) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyTransition(ctx, order, next); err != nil {
		return nil, err
	}
	return order, nil
}

// ApplyTransition moves the given order to next, starting from the status
// and version the caller observed. The transition is validated before
// anything is written; the update itself is fenced on that version, so of
// two racing writers exactly one wins and the loser gets a concurrency
// error. On success the order's status and version are advanced in place.
func (s *Store) ApplyTransition(ctx context.Context, order *models.Order, next models.OrderStatus) error {
	if err := order.Status.ValidateTransition(next); err != nil {
		return err
	}
	idb, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := idb.NewUpdate().Model((*models.Order)(nil)).
		Set("status = ?", next).
		Set("version = version + 1").
		Where("id = ?", order.ID).
		Where("version = ?", order.Version).
		Exec(ctx)
	if err != nil {
		return database.WrapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d was modified concurrently: %w", order.ID, database.ErrConcurrency)
	}
	if next == models.OrderStatusCancelled {
		for _, item := range order.Items {
			if err := s.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
	}
	order.Status = next
	order.Version++
	return nil
}

// MarkPaid records a successful payment for a pending order.
func (s *Store) MarkPaid(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.TransitionStatus(ctx, orderID, models.OrderStatusPaid)
}

// MarkShipped records fulfilment of a paid order.
func (s *Store) MarkShipped(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.TransitionStatus(ctx, orderID, models.OrderStatusShipped)
}

// CancelOrder cancels a pending or paid order and restores the reserved
// stock.
func (s *Store) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.TransitionStatus(ctx, orderID, models.OrderStatusCancelled)
}

// RefundOrder refunds a paid or shipped order.
func (s *Store) RefundOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.TransitionStatus(ctx, orderID, models.OrderStatusRefunded)
}

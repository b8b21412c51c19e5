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

	"github.com/shopspring/decimal"
	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/types"
	"github.com/uptrace/bun"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// orderTransitions is the full state machine: pending -> paid -> shipped,
// cancelled reachable from pending or paid, refunded from paid or shipped.
// cancelled and refunded are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:   {OrderStatusRefunded},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
}

// IsValid reports whether the status is one of the enumerated states.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) String() string { return string(s) }

// Display returns the status for rendering; out-of-range values collapse to
// the illegal-name marker.
func (s OrderStatus) Display() string {
	if !s.IsValid() {
		return types.IllegalName
	}
	return string(s)
}

var _ types.BaseEnum = OrderStatusPending

// IsTerminal reports whether no transition leaves this state.
func (s OrderStatus) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the state machine allows s -> to.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns InvalidTransitionError unless s -> to is an
// allowed move. The check runs before any write, so a rejected transition
// never partially applies.
func (s OrderStatus) ValidateTransition(to OrderStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", database.ErrInvalidTransition, to)
	}
	if !s.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, s, to)
	}
	return nil
}

// Order is a purchase transaction initiated by a user. It exclusively owns
// its items: deleting an order cascades to them. Total always equals the
// sum of quantity times unit price over the items. Version backs the
// optimistic concurrency check on status updates.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID        int64           `bun:"id,pk,autoincrement" json:"id"`
	Number    string          `bun:"number,notnull,unique" json:"number"`
	UserID    int64           `bun:"user_id,notnull" json:"user_id"`
	Status    OrderStatus     `bun:"status,notnull,default:'pending'" json:"status"`
	Total     decimal.Decimal `bun:"total,notnull,type:decimal(10,2)" json:"total"`
	Version   int64           `bun:"version,notnull,default:1" json:"version"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	User  *User        `bun:"rel:belongs-to,join:user_id=id,on_delete:RESTRICT" json:"user,omitempty"`
	Items []*OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// ComputeTotal returns the sum of the items' subtotals.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Validate checks the order's attributes before persistence.
func (o *Order) Validate() error {
	if o.UserID == 0 {
		return fmt.Errorf("%w: order requires a user", database.ErrConstraintViolation)
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("%w: unknown order status %q", database.ErrConstraintViolation, o.Status)
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: order total must not be negative, got %s", database.ErrConstraintViolation, o.Total)
	}
	return nil
}

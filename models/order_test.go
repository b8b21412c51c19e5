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
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storekit/storekit/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to OrderStatus
	}{
		{OrderStatusPending, OrderStatusPaid},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusShipped},
		{OrderStatusPaid, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusRefunded},
		{OrderStatusShipped, OrderStatusRefunded},
	}
	for _, tc := range allowed {
		assert.NoError(t, tc.from.ValidateTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct {
		from, to OrderStatus
	}{
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusPending, OrderStatusRefunded},
		{OrderStatusShipped, OrderStatusPending},
		{OrderStatusShipped, OrderStatusPaid},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusPending},
	}
	for _, tc := range denied {
		err := tc.from.ValidateTransition(tc.to)
		assert.ErrorIs(t, err, database.ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatusTerminalStates(t *testing.T) {
	for _, terminal := range []OrderStatus{OrderStatusCancelled, OrderStatusRefunded} {
		assert.True(t, terminal.IsTerminal())
		for _, next := range []OrderStatus{
			OrderStatusPending, OrderStatusPaid, OrderStatusShipped,
			OrderStatusCancelled, OrderStatusRefunded,
		} {
			assert.ErrorIs(t, terminal.ValidateTransition(next), database.ErrInvalidTransition,
				"%s is terminal, %s -> %s must fail", terminal, terminal, next)
		}
	}
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.False(t, OrderStatusShipped.IsTerminal())
}

func TestOrderStatusUnknown(t *testing.T) {
	assert.False(t, OrderStatus("delivered").IsValid())
	assert.ErrorIs(t, OrderStatusPending.ValidateTransition(OrderStatus("delivered")),
		database.ErrInvalidTransition)
	assert.Equal(t, "unknown", OrderStatus("delivered").Display())
	assert.Equal(t, "paid", OrderStatusPaid.Display())
}

func TestOrderComputeTotal(t *testing.T) {
	order := &Order{
		Items: []*OrderItem{
			{Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{Quantity: 1, UnitPrice: decimal.RequireFromString("5.50")},
		},
	}
	require.True(t, order.ComputeTotal().Equal(decimal.RequireFromString("25.50")))

	empty := &Order{}
	require.True(t, empty.ComputeTotal().IsZero())
}

func TestOrderValidate(t *testing.T) {
	order := &Order{UserID: 1, Status: OrderStatusPending}
	assert.NoError(t, order.Validate())

	assert.ErrorIs(t, (&Order{Status: OrderStatusPending}).Validate(), database.ErrConstraintViolation)
	assert.ErrorIs(t, (&Order{UserID: 1, Status: "bogus"}).Validate(), database.ErrConstraintViolation)

	negative := &Order{UserID: 1, Status: OrderStatusPending, Total: decimal.RequireFromString("-1")}
	assert.ErrorIs(t, negative.Validate(), database.ErrConstraintViolation)
}

func TestOrderItemValidate(t *testing.T) {
	item := &OrderItem{OrderID: 1, ProductID: 1, Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")}
	assert.NoError(t, item.Validate())

	item.Quantity = 0
	assert.ErrorIs(t, item.Validate(), database.ErrConstraintViolation)

	item.Quantity = 3
	item.UnitPrice = decimal.RequireFromString("-0.01")
	assert.ErrorIs(t, item.Validate(), database.ErrConstraintViolation)
}

func TestReviewValidate(t *testing.T) {
	review := &Review{UserID: 1, ProductID: 1, Rating: 5}
	assert.NoError(t, review.Validate())

	for _, rating := range []int{0, -1, 6} {
		review.Rating = rating
		assert.ErrorIs(t, review.Validate(), database.ErrConstraintViolation, "rating %d", rating)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "travel-mug", Slugify("Travel Mug"))
	assert.Equal(t, "mk-2-travel-mug", Slugify("  Mk.2  Travel Mug!  "))

	category := &Category{Name: "Home & Garden"}
	require.NoError(t, category.Validate())
	assert.Equal(t, "home-garden", category.Slug)
}

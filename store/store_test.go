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

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storekit/storekit"
	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/models"
	"github.com/storekit/storekit/store"
	"github.com/storekit/storekit/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T, name string) *database.Engine {
	t.Helper()
	engine, err := database.InitDatabase(&database.Config{
		Connection: database.ConnectionConfig{
			Type:   "sqlite",
			DBName: fmt.Sprintf("file:store_%s?mode=memory&cache=shared", name),
		},
		Migrate: database.MigrateConfig{MigrateOnStartup: true},
	})
	require.NoError(t, err)
	return engine
}

// fixture is the baseline dataset: one user, one category, one product with
// price 10.00 and stock 5.
type fixture struct {
	user     *models.User
	category *models.Category
	product  *models.Product
}

func seed(t *testing.T, engine *database.Engine) *fixture {
	t.Helper()
	f := &fixture{
		user:     &models.User{Handle: "u1", Email: "u1@example.com", Name: "User One"},
		category: &models.Category{Name: "Books"},
	}
	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		if err := s.CreateUser(ctx, f.user); err != nil {
			return err
		}
		if err := s.CreateCategory(ctx, f.category); err != nil {
			return err
		}
		f.product = &models.Product{
			Name:       "p1",
			Price:      decimal.RequireFromString("10.00"),
			Stock:      5,
			CategoryID: f.category.ID,
			Images:     types.StringArray{"p1-front.jpg"},
			Attributes: types.JsonObject{"format": "hardcover"},
		}
		return s.CreateProduct(ctx, f.product)
	}))
	return f
}

func placeOrder(t *testing.T, engine *database.Engine, userID int64, lines ...store.OrderLine) *models.Order {
	t.Helper()
	var order *models.Order
	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		var err error
		order, err = s.CreateOrder(ctx, userID, lines)
		return err
	}))
	return order
}

func loadOrder(t *testing.T, engine *database.Engine, id int64) *models.Order {
	t.Helper()
	var order *models.Order
	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		var err error
		order, err = s.GetOrder(ctx, id)
		return err
	}))
	return order
}

func loadProduct(t *testing.T, engine *database.Engine, id int64) *models.Product {
	t.Helper()
	var product *models.Product
	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		var err error
		product, err = s.GetProduct(ctx, id)
		return err
	}))
	return product
}

func transition(engine *database.Engine, orderID int64, next models.OrderStatus) error {
	return storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.TransitionStatus(ctx, orderID, next)
		return err
	})
}

func TestCreateOrderSnapshotsPriceAndDecrementsStock(t *testing.T) {
	engine := testEngine(t, "snapshot")
	f := seed(t, engine)

	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 2})

	require.NotEmpty(t, order.Number)
	assert.Equal(t, models.OrderStatusPending, order.Status)

	stored := loadProduct(t, engine, f.product.ID)
	assert.Equal(t, types.StringArray{"p1-front.jpg"}, stored.Images)
	assert.Equal(t, "hardcover", stored.Attributes["format"])
	assert.True(t, order.Total.Equal(decimal.RequireFromString("20.00")),
		"total %s, want 20.00", order.Total)
	assert.Equal(t, 3, loadProduct(t, engine, f.product.ID).Stock)

	// A later price change must not rewrite the captured unit price.
	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.UpdatePrice(ctx, f.product.ID, decimal.RequireFromString("12.00"))
	}))

	reloaded := loadOrder(t, engine, order.ID)
	require.Len(t, reloaded.Items, 1)
	assert.True(t, reloaded.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")),
		"unit price %s, want the price at the time of sale", reloaded.Items[0].UnitPrice)
	assert.True(t, reloaded.Total.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, loadProduct(t, engine, f.product.ID).Price.Equal(decimal.RequireFromString("12.00")))
}

func TestCreateOrderHonorsExplicitUnitPrice(t *testing.T) {
	engine := testEngine(t, "discount")
	f := seed(t, engine)

	discounted := decimal.RequireFromString("8.50")
	order := placeOrder(t, engine, f.user.ID,
		store.OrderLine{ProductID: f.product.ID, Quantity: 3, UnitPrice: &discounted})

	assert.True(t, order.Total.Equal(decimal.RequireFromString("25.50")),
		"total %s, want 25.50", order.Total)
}

func TestCreateOrderRejectsOversell(t *testing.T) {
	engine := testEngine(t, "oversell")
	f := seed(t, engine)

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.CreateOrder(ctx, f.user.ID, []store.OrderLine{
			{ProductID: f.product.ID, Quantity: 6},
		})
		return err
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)

	// The failed placement rolled back, so nothing was reserved.
	assert.Equal(t, 5, loadProduct(t, engine, f.product.ID).Stock)
}

func TestCreateOrderRejectsEmptyAndUnknownInput(t *testing.T) {
	engine := testEngine(t, "orderinput")
	f := seed(t, engine)

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.CreateOrder(ctx, f.user.ID, nil)
		return err
	})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)

	err = storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.CreateOrder(ctx, 9999, []store.OrderLine{{ProductID: f.product.ID, Quantity: 1}})
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.CreateOrder(ctx, f.user.ID, []store.OrderLine{{ProductID: 9999, Quantity: 1}})
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderLifecycle(t *testing.T) {
	engine := testEngine(t, "lifecycle")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})

	require.NoError(t, transition(engine, order.ID, models.OrderStatusPaid))
	require.NoError(t, transition(engine, order.ID, models.OrderStatusShipped))

	// A shipped order can only be refunded.
	assert.ErrorIs(t, transition(engine, order.ID, models.OrderStatusPending), database.ErrInvalidTransition)
	assert.ErrorIs(t, transition(engine, order.ID, models.OrderStatusCancelled), database.ErrInvalidTransition)

	require.NoError(t, transition(engine, order.ID, models.OrderStatusRefunded))

	// Refunded is terminal.
	assert.ErrorIs(t, transition(engine, order.ID, models.OrderStatusPaid), database.ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusRefunded, loadOrder(t, engine, order.ID).Status)
}

func TestCancelRestoresStock(t *testing.T) {
	engine := testEngine(t, "cancel")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 4})
	require.Equal(t, 1, loadProduct(t, engine, f.product.ID).Stock)

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.CancelOrder(ctx, order.ID)
		return err
	}))

	assert.Equal(t, models.OrderStatusCancelled, loadOrder(t, engine, order.ID).Status)
	assert.Equal(t, 5, loadProduct(t, engine, f.product.ID).Stock)

	// Cancelled is terminal.
	assert.ErrorIs(t, transition(engine, order.ID, models.OrderStatusPaid), database.ErrInvalidTransition)
}

func TestStaleWriterGetsConcurrencyError(t *testing.T) {
	engine := testEngine(t, "stale")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})

	// First observer reads the order and holds on to it.
	stale := loadOrder(t, engine, order.ID)

	// A second writer commits a transition in between; the version advances.
	require.NoError(t, transition(engine, order.ID, models.OrderStatusPaid))

	// The first observer now applies a transition that is valid for the
	// status it saw, but its version is no longer current.
	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.ApplyTransition(ctx, stale, models.OrderStatusCancelled)
	})
	require.ErrorIs(t, err, database.ErrConcurrency)
	assert.Equal(t, models.OrderStatusPaid, loadOrder(t, engine, order.ID).Status)
}

func TestRacingStatusWritersResolveToOneWinner(t *testing.T) {
	engine := testEngine(t, "race")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})
	require.NoError(t, transition(engine, order.ID, models.OrderStatusPaid))

	// Two sessions race the same paid order toward different terminal
	// states. Exactly one commit may land; the loser is rejected either by
	// the version fence or by the storage engine's locking.
	targets := []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusRefunded}
	snapshots := []*models.Order{loadOrder(t, engine, order.ID), loadOrder(t, engine, order.ID)}
	errs := make([]error, len(targets))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
				return s.ApplyTransition(ctx, snapshots[i], targets[i])
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var winners []models.OrderStatus
	for i, err := range errs {
		if err == nil {
			winners = append(winners, targets[i])
			continue
		}
		assert.Truef(t,
			errors.Is(err, database.ErrConcurrency) || errors.Is(err, database.ErrTimeout),
			"loser must fail with a conflict, got %v", err)
	}
	require.Len(t, winners, 1, "exactly one writer must win")
	assert.Equal(t, winners[0], loadOrder(t, engine, order.ID).Status)
}

func TestAddAndRemoveItemKeepTotalConsistent(t *testing.T) {
	engine := testEngine(t, "items")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.AddItem(ctx, order.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 2})
		return err
	}))

	reloaded := loadOrder(t, engine, order.ID)
	require.Len(t, reloaded.Items, 2)
	assert.True(t, reloaded.Total.Equal(decimal.RequireFromString("30.00")),
		"total %s, want 30.00", reloaded.Total)
	assert.Equal(t, 2, loadProduct(t, engine, f.product.ID).Stock)

	var added *models.OrderItem
	for _, item := range reloaded.Items {
		if item.Quantity == 2 {
			added = item
		}
	}
	require.NotNil(t, added)

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.RemoveItem(ctx, order.ID, added.ID)
		return err
	}))

	reloaded = loadOrder(t, engine, order.ID)
	require.Len(t, reloaded.Items, 1)
	assert.True(t, reloaded.Total.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, 4, loadProduct(t, engine, f.product.ID).Stock)
}

func TestAddItemRejectsNegativeUnitPrice(t *testing.T) {
	engine := testEngine(t, "negitem")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})

	negative := decimal.RequireFromString("-100.00")
	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.AddItem(ctx, order.ID, store.OrderLine{
			ProductID: f.product.ID,
			Quantity:  1,
			UnitPrice: &negative,
		})
		return err
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)

	reloaded := loadOrder(t, engine, order.ID)
	require.Len(t, reloaded.Items, 1)
	assert.True(t, reloaded.Total.Equal(decimal.RequireFromString("10.00")),
		"total %s, want 10.00", reloaded.Total)
	assert.False(t, reloaded.Total.IsNegative())
	assert.Equal(t, 4, loadProduct(t, engine, f.product.ID).Stock)
}

func TestItemsFrozenOnceOrderLeavesPending(t *testing.T) {
	engine := testEngine(t, "frozen")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})
	require.NoError(t, transition(engine, order.ID, models.OrderStatusPaid))

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.AddItem(ctx, order.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})
		return err
	})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)
}

func TestDuplicateReviewRejected(t *testing.T) {
	engine := testEngine(t, "review")
	f := seed(t, engine)

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.CreateReview(ctx, &models.Review{
			UserID: f.user.ID, ProductID: f.product.ID, Rating: 5, Title: "great",
		})
	}))

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.CreateReview(ctx, &models.Review{
			UserID: f.user.ID, ProductID: f.product.ID, Rating: 1, Title: "changed my mind",
		})
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		reviews, err := s.ListProductReviews(ctx, f.product.ID)
		if err != nil {
			return err
		}
		assert.Len(t, reviews, 1)

		avg, count, err := s.ProductRating(ctx, f.product.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, count)
		assert.InDelta(t, 5.0, avg, 0.001)
		return nil
	}))
}

func TestDeleteCategoryWithProductsIsRejected(t *testing.T) {
	engine := testEngine(t, "catdelete")
	f := seed(t, engine)

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.DeleteCategory(ctx, f.category.ID)
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)
}

func TestDeleteProductGuardsHistoricalReferences(t *testing.T) {
	engine := testEngine(t, "proddelete")
	f := seed(t, engine)
	placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.DeleteProduct(ctx, f.product.ID)
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)

	// An unreferenced product deletes cleanly.
	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		spare := &models.Product{
			Name:       "spare",
			Price:      decimal.RequireFromString("1.00"),
			CategoryID: f.category.ID,
		}
		if err := s.CreateProduct(ctx, spare); err != nil {
			return err
		}
		return s.DeleteProduct(ctx, spare.ID)
	}))
}

func TestDeactivateUserKeepsHistory(t *testing.T) {
	engine := testEngine(t, "deactivate")
	f := seed(t, engine)
	order := placeOrder(t, engine, f.user.ID, store.OrderLine{ProductID: f.product.ID, Quantity: 1})

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.DeactivateUser(ctx, f.user.ID)
	}))

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		_, err := s.GetUser(ctx, f.user.ID)
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The order survives with its owner reference intact.
	reloaded := loadOrder(t, engine, order.ID)
	assert.Equal(t, f.user.ID, reloaded.UserID)
}

func TestDuplicateHandleRejected(t *testing.T) {
	engine := testEngine(t, "handle")
	f := seed(t, engine)

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.CreateUser(ctx, &models.User{Handle: f.user.Handle, Email: "other@example.com"})
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)
}

func TestAdjustStockGuards(t *testing.T) {
	engine := testEngine(t, "stock")
	f := seed(t, engine)

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.AdjustStock(ctx, f.product.ID, -5)
	}))
	assert.Equal(t, 0, loadProduct(t, engine, f.product.ID).Stock)

	err := storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.AdjustStock(ctx, f.product.ID, -1)
	})
	assert.ErrorIs(t, err, database.ErrConstraintViolation)

	err = storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		return s.AdjustStock(ctx, 9999, 1)
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListProductsPages(t *testing.T) {
	engine := testEngine(t, "listing")
	f := seed(t, engine)

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		for i := 0; i < 7; i++ {
			p := &models.Product{
				Name:       fmt.Sprintf("widget %d", i),
				Price:      decimal.RequireFromString("2.00"),
				CategoryID: f.category.ID,
			}
			if err := s.CreateProduct(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, storekit.RunStore(context.Background(), engine, func(ctx context.Context, s *store.Store) error {
		page, err := s.ListProducts(ctx, types.NewPageRequestWithFilter(1, 5,
			types.NewQueryFilter("category_id = ?", f.category.ID)))
		if err != nil {
			return err
		}
		assert.Equal(t, 8, page.Total)
		assert.Len(t, page.Items, 5)
		return nil
	}))
}

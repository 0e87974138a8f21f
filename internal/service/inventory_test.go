package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

func seedOrder(t *testing.T, repo *memOrderRepo, items ...models.OrderItem) *models.Order {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		ID:            models.NewOrderID(),
		OrderNumber:   models.NewOrderNumber(),
		AccountID:     "acct-1",
		Items:         items,
		PaymentMethod: models.PaymentMethodEsewa,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.Total = order.ComputeTotal()
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func item(productID string, qty int) models.OrderItem {
	return models.OrderItem{
		ProductID:   productID,
		ProductName: productID,
		UnitPrice:   models.NewMoney(10, "NPR"),
		Quantity:    qty,
	}
}

func TestCheckAvailability(t *testing.T) {
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 5, "prod-2": 1})
	svc := NewInventoryService(inventoryRepo, newMemOrderRepo(), logging.New("test"))
	ctx := context.Background()

	err := svc.CheckAvailability(ctx, []models.OrderItem{item("prod-1", 5), item("prod-2", 1)})
	assert.NoError(t, err)

	err = svc.CheckAvailability(ctx, []models.OrderItem{item("prod-2", 2)})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	err = svc.CheckAvailability(ctx, []models.OrderItem{item("prod-missing", 1)})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Advisory only: nothing was decremented.
	assert.Equal(t, 5, inventoryRepo.stockOf("prod-1"))
	assert.Equal(t, 1, inventoryRepo.stockOf("prod-2"))
}

func TestApplyForOrder(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 10, "prod-2": 10})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo, item("prod-1", 3), item("prod-2", 2))

	require.NoError(t, svc.ApplyForOrder(ctx, order))
	assert.Equal(t, 7, inventoryRepo.stockOf("prod-1"))
	assert.Equal(t, 8, inventoryRepo.stockOf("prod-2"))

	stored, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.StockApplied)
}

func TestApplyForOrder_Idempotent(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 10})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo, item("prod-1", 4))

	require.NoError(t, svc.ApplyForOrder(ctx, order))
	require.NoError(t, svc.ApplyForOrder(ctx, order))
	require.NoError(t, svc.ApplyForOrder(ctx, order))

	assert.Equal(t, 6, inventoryRepo.stockOf("prod-1"))
}

func TestApplyForOrder_CancelledOrderRefused(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 10})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo, item("prod-1", 4))
	ok, err := orderRepo.UpdateStatusIfCurrent(ctx, order.ID, models.OrderStatusPending, models.OrderStatusCancelled, "abandoned")
	require.NoError(t, err)
	require.True(t, ok)

	err = svc.ApplyForOrder(ctx, order)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-1"))
}

func TestApplyForOrder_Concurrent(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 100})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo, item("prod-1", 5))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = svc.ApplyForOrder(ctx, order)
		}()
	}
	wg.Wait()

	if got := inventoryRepo.stockOf("prod-1"); got != 95 {
		t.Errorf("expected stock decremented exactly once to 95, got %d", got)
	}
}

func TestApplyForOrder_RollsBackOnInsufficientItem(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{
		"prod-1": 10,
		"prod-2": 10,
		"prod-3": 1, // not enough for the order below
		"prod-4": 10,
	})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo,
		item("prod-1", 2), item("prod-2", 2), item("prod-3", 5), item("prod-4", 2))

	err := svc.ApplyForOrder(ctx, order)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	// All-or-nothing: the two successful decrements were compensated.
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-1"))
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-2"))
	assert.Equal(t, 1, inventoryRepo.stockOf("prod-3"))
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-4"))

	// Claim released, so a later retry (after restock) succeeds.
	stored, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.StockApplied)

	require.NoError(t, inventoryRepo.Increment(ctx, "prod-3", 10))
	require.NoError(t, svc.ApplyForOrder(ctx, order))
	assert.Equal(t, 8, inventoryRepo.stockOf("prod-1"))
	assert.Equal(t, 6, inventoryRepo.stockOf("prod-3"))
}

func TestApplyForOrder_RollbackFailureIsInternal(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{
		"prod-1": 10,
		"prod-2": 0,
	})
	inventoryRepo.failIncrement["prod-1"] = true
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))

	order := seedOrder(t, orderRepo, item("prod-1", 2), item("prod-2", 2))

	err := svc.ApplyForOrder(context.Background(), order)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInternal))
}

func TestRestoreForOrder(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 10, "prod-2": 10})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo, item("prod-1", 3), item("prod-2", 2))
	require.NoError(t, svc.ApplyForOrder(ctx, order))

	stored, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, svc.RestoreForOrder(ctx, stored))
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-1"))
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-2"))

	// A second restore is a no-op, not a double increment.
	require.NoError(t, svc.RestoreForOrder(ctx, stored))
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-1"))
}

func TestRestoreForOrder_NothingApplied(t *testing.T) {
	orderRepo := newMemOrderRepo()
	inventoryRepo := newMemInventoryRepo(map[string]int{"prod-1": 10})
	svc := NewInventoryService(inventoryRepo, orderRepo, logging.New("test"))
	ctx := context.Background()

	order := seedOrder(t, orderRepo, item("prod-1", 3))

	require.NoError(t, svc.RestoreForOrder(ctx, order))
	assert.Equal(t, 10, inventoryRepo.stockOf("prod-1"))
}

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/metrics"
	"github.com/sajilomart/orders-service/internal/models"
	"github.com/sajilomart/orders-service/internal/repository"
)

// InventoryService is the inventory ledger: it owns every stock mutation
// made on behalf of orders. Stock for an order is applied exactly once over
// the order's lifetime, gated by the order's stock-applied claim flag, and a
// multi-item application is all-or-nothing: a failed item rolls back every
// decrement made before it.
type InventoryService struct {
	inventory repository.InventoryRepository
	orders    repository.OrderRepository
	logger    *logging.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(
	inventory repository.InventoryRepository,
	orders repository.OrderRepository,
	logger *logging.Logger,
) *InventoryService {
	return &InventoryService{
		inventory: inventory,
		orders:    orders,
		logger:    logger,
	}
}

// CheckAvailability verifies that every item's quantity is currently in
// stock. This is the advisory creation-time pre-check: it fails fast but
// does not reserve anything, so the authoritative conditional decrement at
// application time is still required.
func (s *InventoryService) CheckAvailability(ctx context.Context, items []models.OrderItem) error {
	for _, item := range items {
		stock, err := s.inventory.GetStock(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("product %s: %w", item.ProductID, apperrors.ErrNotFound)
			}
			return err
		}
		if stock < item.Quantity {
			return fmt.Errorf("product %s: %w", item.ProductID, apperrors.ErrInsufficientStock)
		}
	}
	return nil
}

// ApplyForOrder decrements stock for every line item of the order, exactly
// once per order id. A repeated call after the claim succeeded is a no-op,
// so crashed or retried requests cannot double-decrement. A claim refused
// because the order was cancelled in the meantime is a conflict: nothing is
// decremented, and the caller must unwind its own state. On any insufficient
// item the already-decremented items are incremented back and the claim is
// released before the error is returned.
func (s *InventoryService) ApplyForOrder(ctx context.Context, order *models.Order) error {
	claimed, err := s.orders.ClaimStockApplied(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("claim stock application: %w", err)
	}
	if !claimed {
		current, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("recheck stock claim: %w", err)
		}
		if current.StockApplied {
			s.logger.Debug("Stock already applied", logging.Fields{"order_id": order.ID})
			return nil
		}
		return fmt.Errorf("order %s was cancelled before stock was applied: %w",
			order.ID, apperrors.ErrConflict)
	}

	applied := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		ok, err := s.inventory.DecrementIfAvailable(ctx, item.ProductID, item.Quantity)
		if err == nil && ok {
			applied = append(applied, item)
			continue
		}

		metrics.StockDecrementFailures.Inc()
		if rbErr := s.rollback(ctx, order.ID, applied); rbErr != nil {
			return rbErr
		}
		if err != nil {
			return fmt.Errorf("decrement product %s: %w", item.ProductID, err)
		}
		return fmt.Errorf("product %s: %w", item.ProductID, apperrors.ErrInsufficientStock)
	}

	s.logger.Info("Stock applied for order", logging.Fields{
		"order_id":   order.ID,
		"item_count": len(order.Items),
	})
	return nil
}

// RestoreForOrder reverses a prior application, used when an order is
// cancelled after its stock was already decremented. Releasing the claim
// flag first keeps the restore itself exactly-once.
func (s *InventoryService) RestoreForOrder(ctx context.Context, order *models.Order) error {
	released, err := s.orders.ReleaseStockApplied(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("release stock application: %w", err)
	}
	if !released {
		return nil
	}

	for _, item := range order.Items {
		if err := s.inventory.Increment(ctx, item.ProductID, item.Quantity); err != nil {
			// A half-restored ledger cannot be repaired safely here.
			s.logger.Error("Stock restore failed partway", logging.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
				"error":      err.Error(),
			})
			return fmt.Errorf("restore product %s for order %s: %w",
				item.ProductID, order.ID, apperrors.ErrInternal)
		}
	}

	s.logger.Info("Stock restored for order", logging.Fields{
		"order_id":   order.ID,
		"item_count": len(order.Items),
	})
	return nil
}

// rollback compensates the decrements recorded in applied and releases the
// order's claim. A failure inside the compensation itself is unrecoverable
// and escalated for operator intervention.
func (s *InventoryService) rollback(ctx context.Context, orderID string, applied []models.OrderItem) error {
	for _, item := range applied {
		if err := s.inventory.Increment(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("Stock rollback failed partway", logging.Fields{
				"order_id":   orderID,
				"product_id": item.ProductID,
				"error":      err.Error(),
			})
			return fmt.Errorf("rollback product %s for order %s: %w",
				item.ProductID, orderID, apperrors.ErrInternal)
		}
	}

	if _, err := s.orders.ReleaseStockApplied(ctx, orderID); err != nil {
		return fmt.Errorf("release stock claim for order %s: %w", orderID, apperrors.ErrInternal)
	}
	return nil
}

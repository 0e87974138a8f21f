package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/clients"
	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/metrics"
	"github.com/sajilomart/orders-service/internal/models"
	"github.com/sajilomart/orders-service/internal/repository"
)

// EventPublisher emits order lifecycle events. Implemented by the kafka
// publisher; failures are logged, never surfaced to the caller.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
	PublishPaymentConfirmed(ctx context.Context, order *models.Order) error
	PublishOrderCancelled(ctx context.Context, order *models.Order, reason string) error
}

// OrderService is the order lifecycle manager: creation, payment
// confirmation, status transitions and the inventory effects they trigger.
//
// The designated stock-decrement trigger is payment settlement. Online
// methods settle in ConfirmPayment; cash-on-delivery settles at delivery, so
// the DELIVERED transition applies stock instead. Both paths go through the
// ledger's claimed, exactly-once application.
type OrderService struct {
	orderRepo  repository.OrderRepository
	orderCache repository.OrderCache
	inventory  *InventoryService
	accounts   clients.AccountClient
	catalog    clients.CatalogClient
	events     EventPublisher
	config     *config.Config
	logger     *logging.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	orderCache repository.OrderCache,
	inventory *InventoryService,
	accounts clients.AccountClient,
	catalog clients.CatalogClient,
	events EventPublisher,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		orderCache: orderCache,
		inventory:  inventory,
		accounts:   accounts,
		catalog:    catalog,
		events:     events,
		config:     cfg,
		logger:     logging.New("order-service"),
	}
}

// CreateOrder places a new order for the actor. Names and prices are
// snapshotted from the catalog at call time; the stored total is computed
// from those snapshots, never taken from the request. Inventory is not
// touched here beyond the advisory availability pre-check.
func (s *OrderService) CreateOrder(ctx context.Context, actorID string, req *models.CreateOrderRequest) (*models.Order, error) {
	if err := ValidateCreateOrderRequest(actorID, req); err != nil {
		return nil, err
	}

	address, err := s.accounts.GetAddress(ctx, actorID, req.ShippingAddressID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("shipping address %s: %w", req.ShippingAddressID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("resolve shipping address: %w", err)
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		product, err := s.catalog.GetProduct(ctx, reqItem.ProductID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("product %s: %w", reqItem.ProductID, apperrors.ErrNotFound)
			}
			return nil, fmt.Errorf("fetch product %s: %w", reqItem.ProductID, err)
		}
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			UnitPrice:   product.Price,
			Quantity:    reqItem.Quantity,
		})
	}

	if err := s.inventory.CheckAvailability(ctx, items); err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:            models.NewOrderID(),
		OrderNumber:   models.NewOrderNumber(),
		AccountID:     actorID,
		Items:         items,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusPending,
		ShippingAddress: models.ShippingAddress{
			AddressID:  address.ID,
			Name:       address.Name,
			Street:     address.Street,
			City:       address.City,
			State:      address.State,
			PostalCode: address.PostalCode,
			Phone:      address.Phone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.Total = order.ComputeTotal()

	// Offline methods settle at delivery; there is no confirmation step to
	// wait for, so the payment is considered settled from the start.
	if req.PaymentMethod.IsOffline() {
		order.PaymentStatus = models.PaymentStatusPaid
		order.PaymentDetails = &models.PaymentDetails{PaymentDate: &now}
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersCreated.WithLabelValues(string(order.PaymentMethod)).Inc()

	if s.config.Features.EnableOrderCaching {
		if err := s.orderCache.Set(ctx, order); err != nil {
			s.logger.Warn("Failed to cache order", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
		s.invalidateAccountCache(ctx, order.AccountID)
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("Failed to publish order created event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	s.logger.Info("Order created", logging.Fields{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"account_id":     order.AccountID,
		"payment_method": order.PaymentMethod,
		"total":          order.Total.Amount,
	})
	return order, nil
}

// ConfirmPayment settles the order's payment. Re-invoking on an already-PAID
// order is a no-op returning the current state. Exactly one of any set of
// concurrent confirmations wins the conditional update; the winner applies
// stock. If any line item cannot be covered, or a cancellation won the status
// race before stock was claimed, the payment is rolled back so the order is
// never left PAID with unfulfillable items and a cancelled order never holds
// stock.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, req *models.ConfirmPaymentRequest) (*models.Order, error) {
	if err := ValidateConfirmPaymentRequest(req); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return order, nil
	}
	if order.OrderStatus == models.OrderStatusCancelled || order.PaymentStatus == models.PaymentStatusFailed {
		return nil, fmt.Errorf("order %s payment is %s: %w", orderID, order.PaymentStatus, apperrors.ErrConflict)
	}

	details := req.Details
	if details == nil {
		details = &models.PaymentDetails{}
	}
	if details.PaymentDate == nil {
		now := time.Now()
		details.PaymentDate = &now
	}

	confirmed, err := s.orderRepo.ConfirmPaymentIfPending(ctx, orderID, details)
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	if !confirmed {
		// Lost the race. If another confirmation won, report its result;
		// anything else (cancellation, failure) is a conflict.
		current, err := s.orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == models.PaymentStatusPaid {
			return current, nil
		}
		metrics.PaymentConfirmations.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("order %s is no longer awaiting payment: %w", orderID, apperrors.ErrConflict)
	}

	if err := s.inventory.ApplyForOrder(ctx, order); err != nil {
		if revertErr := s.orderRepo.RevertPaymentToPending(ctx, orderID); revertErr != nil {
			s.logger.Error("Failed to revert payment after stock failure", logging.Fields{
				"order_id": orderID,
				"error":    revertErr.Error(),
			})
		}
		s.invalidateOrderCache(ctx, order)
		if errors.Is(err, apperrors.ErrConflict) {
			metrics.PaymentConfirmations.WithLabelValues("conflict").Inc()
		} else {
			metrics.PaymentConfirmations.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	metrics.PaymentConfirmations.WithLabelValues("confirmed").Inc()
	s.invalidateOrderCache(ctx, order)

	updated, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.events.PublishPaymentConfirmed(ctx, updated); err != nil {
			s.logger.Error("Failed to publish payment confirmed event", logging.Fields{
				"order_id": orderID,
				"error":    err.Error(),
			})
		}
	}

	s.logger.Info("Payment confirmed", logging.Fields{
		"order_id": orderID,
		"method":   req.Method,
	})
	return updated, nil
}

// MarkPaymentFailed records a failed gateway payment while it is still
// pending. Used by the payments event consumer.
func (s *OrderService) MarkPaymentFailed(ctx context.Context, orderID string) error {
	failed, err := s.orderRepo.MarkPaymentFailedIfPending(ctx, orderID)
	if err != nil {
		return err
	}
	if failed {
		metrics.PaymentConfirmations.WithLabelValues("failed").Inc()
		order, err := s.orderRepo.GetByID(ctx, orderID)
		if err == nil {
			s.invalidateOrderCache(ctx, order)
		}
	}
	return nil
}

// UpdateOrderStatus applies an admin-driven status transition. Illegal edges
// fail with InvalidTransition; a precondition lost to a concurrent writer
// fails with Conflict. Transitioning into DELIVERED settles
// cash-on-delivery orders, so it applies stock through the same exactly-once
// guard; transitioning into CANCELLED restores stock that was already
// applied.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, actorID string, newStatus models.OrderStatus) (*models.Order, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("status", "unknown order status")
	}

	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.OrderStatus, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", order.OrderStatus, newStatus, apperrors.ErrInvalidTransition)
	}

	// Delivery settles offline payments: apply stock before committing the
	// transition so an unfulfillable order is never marked DELIVERED.
	if newStatus == models.OrderStatusDelivered {
		if err := s.inventory.ApplyForOrder(ctx, order); err != nil {
			return nil, err
		}
	}

	updated, err := s.transition(ctx, order, newStatus, "")
	if err != nil {
		return nil, err
	}

	if newStatus == models.OrderStatusCancelled {
		// Judge by the post-transition row, not the earlier read: a payment
		// confirmation may have applied stock in between.
		if updated.StockApplied {
			if err := s.inventory.RestoreForOrder(ctx, updated); err != nil {
				return nil, err
			}
		}
		if s.config.Features.EnableOrderEvents {
			if err := s.events.PublishOrderCancelled(ctx, updated, ""); err != nil {
				s.logger.Error("Failed to publish order cancelled event", logging.Fields{
					"order_id": orderID,
					"error":    err.Error(),
				})
			}
		}
	}

	return updated, nil
}

// CancelOrder cancels on behalf of the owner or an admin. Owners may cancel
// while the order is still PENDING; admins may also cancel PROCESSING
// orders. Stock already applied is restored.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, actorID, reason string) (*models.Order, error) {
	if err := ValidateCancellationReason(reason); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	isOwner := order.AccountID == actorID
	if !isOwner {
		if err := s.requireAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}

	if !order.CanCancel() {
		return nil, fmt.Errorf("%s -> %s: %w", order.OrderStatus, models.OrderStatusCancelled, apperrors.ErrInvalidTransition)
	}
	if isOwner && order.OrderStatus != models.OrderStatusPending {
		return nil, fmt.Errorf("only pending orders can be cancelled by their owner: %w", apperrors.ErrForbidden)
	}

	updated, err := s.transition(ctx, order, models.OrderStatusCancelled, reason)
	if err != nil {
		return nil, err
	}

	// Judge by the post-transition row, not the earlier read: a payment
	// confirmation may have applied stock in between.
	if updated.StockApplied {
		if err := s.inventory.RestoreForOrder(ctx, updated); err != nil {
			return nil, err
		}
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.events.PublishOrderCancelled(ctx, updated, reason); err != nil {
			s.logger.Error("Failed to publish order cancelled event", logging.Fields{
				"order_id": orderID,
				"error":    err.Error(),
			})
		}
	}

	return updated, nil
}

// GetOrder returns the order, visible only to its owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	if s.config.Features.EnableOrderCaching {
		if order, err := s.orderCache.Get(ctx, orderID); err == nil && order != nil {
			return s.authorizeRead(ctx, order, actorID)
		}
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if s.config.Features.EnableOrderCaching {
		if err := s.orderCache.Set(ctx, order); err != nil {
			s.logger.Warn("Failed to cache order", logging.Fields{
				"order_id": orderID,
				"error":    err.Error(),
			})
		}
	}

	return s.authorizeRead(ctx, order, actorID)
}

// ListOrders is the admin listing with status filter and pagination.
func (s *OrderService) ListOrders(ctx context.Context, actorID string, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	if err := ValidateOrderListFilter(filter); err != nil {
		return nil, 0, err
	}
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, 0, err
	}

	return s.orderRepo.List(ctx, filter)
}

// GetMyOrders returns the actor's own order history, newest first.
func (s *OrderService) GetMyOrders(ctx context.Context, actorID string, limit, offset int) ([]*models.Order, int, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	// Only the default first page is cached; the entry carries the full match
	// count so cached and uncached reads report the same total.
	cacheable := s.config.Features.EnableOrderCaching && offset == 0 && limit == defaultPageSize

	if cacheable {
		if orders, total, err := s.orderCache.GetByAccountID(ctx, actorID); err == nil && orders != nil {
			return orders, total, nil
		}
	}

	filter := &models.OrderListFilter{AccountID: actorID, Limit: limit, Offset: offset}
	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	if cacheable {
		if err := s.orderCache.SetByAccountID(ctx, actorID, orders, total); err != nil {
			s.logger.Warn("Failed to cache account orders", logging.Fields{
				"account_id": actorID,
				"error":      err.Error(),
			})
		}
	}

	return orders, total, nil
}

// transition performs the guarded CAS write plus the cache and event side
// effects shared by every status change.
func (s *OrderService) transition(ctx context.Context, order *models.Order, newStatus models.OrderStatus, reason string) (*models.Order, error) {
	ok, err := s.orderRepo.UpdateStatusIfCurrent(ctx, order.ID, order.OrderStatus, newStatus, reason)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("order %s status changed concurrently: %w", order.ID, apperrors.ErrConflict)
	}

	metrics.StatusTransitions.WithLabelValues(string(order.OrderStatus), string(newStatus)).Inc()
	s.invalidateOrderCache(ctx, order)

	updated, err := s.orderRepo.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if s.config.Features.EnableOrderEvents && newStatus != models.OrderStatusCancelled {
		if err := s.events.PublishOrderStatusChanged(ctx, updated, order.OrderStatus); err != nil {
			s.logger.Error("Failed to publish status change event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	return updated, nil
}

func (s *OrderService) authorizeRead(ctx context.Context, order *models.Order, actorID string) (*models.Order, error) {
	if order.AccountID == actorID {
		return order, nil
	}
	admin, err := s.accounts.IsAdmin(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve admin capability: %w", err)
	}
	if !admin {
		return nil, apperrors.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) requireAdmin(ctx context.Context, actorID string) error {
	admin, err := s.accounts.IsAdmin(ctx, actorID)
	if err != nil {
		return fmt.Errorf("resolve admin capability: %w", err)
	}
	if !admin {
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *OrderService) invalidateOrderCache(ctx context.Context, order *models.Order) {
	if !s.config.Features.EnableOrderCaching {
		return
	}
	if err := s.orderCache.Delete(ctx, order.ID); err != nil {
		s.logger.Warn("Failed to invalidate order cache", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
	}
	s.invalidateAccountCache(ctx, order.AccountID)
}

func (s *OrderService) invalidateAccountCache(ctx context.Context, accountID string) {
	if err := s.orderCache.InvalidateByAccountID(ctx, accountID); err != nil {
		s.logger.Warn("Failed to invalidate account order cache", logging.Fields{
			"account_id": accountID,
			"error":      err.Error(),
		})
	}
}

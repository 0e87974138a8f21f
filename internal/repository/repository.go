package repository

import (
	"context"

	"github.com/sajilomart/orders-service/internal/models"
)

// OrderRepository is the durable store for orders. Mutations that guard a
// state-machine edge are conditional updates: they report false when the
// precondition row no longer matches instead of overwriting.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error)

	// UpdateStatusIfCurrent sets order_status to next only if it still equals
	// current. Returns false without side effects when the precondition fails.
	UpdateStatusIfCurrent(ctx context.Context, id string, current, next models.OrderStatus, cancelReason string) (bool, error)

	// ConfirmPaymentIfPending atomically marks the payment PAID while it is
	// still PENDING and the order is not cancelled. A still-PENDING order
	// advances to PROCESSING in the same update; an order an admin already
	// moved along keeps its status.
	ConfirmPaymentIfPending(ctx context.Context, id string, details *models.PaymentDetails) (bool, error)

	// RevertPaymentToPending undoes a payment confirmation whose stock
	// application failed. Only a PROCESSING order is moved back to PENDING;
	// a cancellation that won in between stays CANCELLED.
	RevertPaymentToPending(ctx context.Context, id string) error

	// MarkPaymentFailedIfPending records a failed gateway payment while the
	// payment is still PENDING. Returns false when it no longer is.
	MarkPaymentFailedIfPending(ctx context.Context, id string) (bool, error)

	// ClaimStockApplied flips the per-order stock-applied flag from false to
	// true, refusing cancelled orders so a confirmation racing a cancellation
	// can never decrement stock nobody will restore. Returns false when the
	// flag was already set or the order is CANCELLED, making stock
	// application exactly-once per order.
	ClaimStockApplied(ctx context.Context, id string) (bool, error)

	// ReleaseStockApplied clears the flag after a rollback or restore.
	ReleaseStockApplied(ctx context.Context, id string) (bool, error)
}

// InventoryRepository holds per-product stock counts. All mutations are
// atomic conditional updates at the storage layer; callers never compute the
// new stock value themselves.
type InventoryRepository interface {
	GetStock(ctx context.Context, productID string) (int, error)

	// DecrementIfAvailable subtracts quantity only if the resulting stock
	// stays non-negative, as a single conditional update. Returns false when
	// stock is insufficient.
	DecrementIfAvailable(ctx context.Context, productID string, quantity int) (bool, error)

	Increment(ctx context.Context, productID string, quantity int) error
}

// OrderCache is the read-through cache in front of the order store. The
// per-account entry holds the first default-sized page together with the full
// match count, so a cached read reports the same total as the store.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
	GetByAccountID(ctx context.Context, accountID string) ([]*models.Order, int, error)
	SetByAccountID(ctx context.Context, accountID string, orders []*models.Order, total int) error
	InvalidateByAccountID(ctx context.Context, accountID string) error
}

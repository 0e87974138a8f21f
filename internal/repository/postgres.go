package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
// Line items, the shipping-address snapshot and payment details are stored as
// JSON documents inside the order row, so every guarded mutation is a
// single-row conditional update.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

var _ OrderRepository = (*PostgresOrderRepository)(nil)

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB, logger *logging.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `
	id, order_number, account_id, items, shipping_address,
	payment_method, payment_status, payment_details, order_status,
	total_amount, total_currency, stock_applied, cancel_reason,
	created_at, updated_at
`

// Create inserts a new order.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	var detailsJSON []byte
	if order.PaymentDetails != nil {
		detailsJSON, err = json.Marshal(order.PaymentDetails)
		if err != nil {
			return fmt.Errorf("marshal payment details: %w", err)
		}
	}

	query := `
		INSERT INTO orders (
			id, order_number, account_id, items, shipping_address,
			payment_method, payment_status, payment_details, order_status,
			total_amount, total_currency, stock_applied, cancel_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.OrderNumber,
		order.AccountID,
		itemsJSON,
		addressJSON,
		order.PaymentMethod,
		order.PaymentStatus,
		nullBytes(detailsJSON),
		order.OrderStatus,
		order.Total.Amount,
		order.Total.Currency,
		order.StockApplied,
		nullString(order.CancelReason),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return err
	}

	r.logger.Info("Order created", logging.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"account_id":   order.AccountID,
		"total":        order.Total.Amount,
	})
	return nil
}

// GetByID retrieves an order by its unique identifier.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}
	return order, nil
}

// List retrieves orders matching the filter, newest first, plus the total
// match count for pagination.
func (r *PostgresOrderRepository) List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	baseQuery := ` FROM orders WHERE 1=1`
	args := make([]interface{}, 0, 4)

	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		baseQuery += " AND account_id = $" + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		baseQuery += " AND order_status = $" + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	selectQuery := "SELECT " + orderColumns + baseQuery +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)-1) +
		" OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// UpdateStatusIfCurrent performs the guarded status transition. The WHERE
// clause carries the expected prior status, so concurrent writers cannot
// overwrite each other; zero rows affected means the precondition failed.
func (r *PostgresOrderRepository) UpdateStatusIfCurrent(ctx context.Context, id string, current, next models.OrderStatus, cancelReason string) (bool, error) {
	query := `
		UPDATE orders
		SET order_status = $3, cancel_reason = COALESCE($4, cancel_reason), updated_at = $5
		WHERE id = $1 AND order_status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, current, next, nullString(cancelReason), time.Now())
	if err != nil {
		r.logger.Error("Failed to update order status", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	r.logger.Info("Order status updated", logging.Fields{
		"order_id":    id,
		"from_status": current,
		"to_status":   next,
	})
	return true, nil
}

// ConfirmPaymentIfPending marks the payment PAID in one conditional update,
// keyed on payment_status still being PENDING and the order not being
// cancelled. A still-PENDING order advances to PROCESSING in the same write;
// one an admin already moved along keeps its status.
func (r *PostgresOrderRepository) ConfirmPaymentIfPending(ctx context.Context, id string, details *models.PaymentDetails) (bool, error) {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return false, fmt.Errorf("marshal payment details: %w", err)
		}
	}

	query := `
		UPDATE orders
		SET payment_status = $2,
		    order_status = CASE WHEN order_status = $3 THEN $4 ELSE order_status END,
		    payment_details = COALESCE($5, payment_details), updated_at = $6
		WHERE id = $1 AND payment_status = $7 AND order_status <> $8
	`

	result, err := r.db.ExecContext(ctx, query,
		id,
		models.PaymentStatusPaid,
		models.OrderStatusPending,
		models.OrderStatusProcessing,
		nullBytes(detailsJSON),
		time.Now(),
		models.PaymentStatusPending,
		models.OrderStatusCancelled,
	)
	if err != nil {
		r.logger.Error("Failed to confirm payment", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// RevertPaymentToPending rolls back a confirmation whose stock application
// failed, so the order is never left PAID with unfulfillable items. Only a
// PROCESSING order moves back to PENDING; if a cancellation won in between,
// the order stays CANCELLED and just the payment is reverted.
func (r *PostgresOrderRepository) RevertPaymentToPending(ctx context.Context, id string) error {
	query := `
		UPDATE orders
		SET payment_status = $2,
		    order_status = CASE WHEN order_status = $3 THEN $4 ELSE order_status END,
		    updated_at = $5
		WHERE id = $1 AND payment_status = $6
	`

	_, err := r.db.ExecContext(ctx, query,
		id,
		models.PaymentStatusPending,
		models.OrderStatusProcessing,
		models.OrderStatusPending,
		time.Now(),
		models.PaymentStatusPaid,
	)
	if err != nil {
		r.logger.Error("Failed to revert payment status", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
	}
	return err
}

// MarkPaymentFailedIfPending records a gateway failure while the payment is
// still PENDING.
func (r *PostgresOrderRepository) MarkPaymentFailedIfPending(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = $2, updated_at = $3
		WHERE id = $1 AND payment_status = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		id, models.PaymentStatusFailed, time.Now(), models.PaymentStatusPending,
	)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// ClaimStockApplied flips stock_applied false -> true atomically. Cancelled
// orders are refused: once a cancellation has won the status race, no caller
// may decrement stock on its behalf.
func (r *PostgresOrderRepository) ClaimStockApplied(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE orders
		SET stock_applied = TRUE, updated_at = $2
		WHERE id = $1 AND stock_applied = FALSE AND order_status <> $3
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now(), models.OrderStatusCancelled)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// ReleaseStockApplied flips stock_applied true -> false atomically.
func (r *PostgresOrderRepository) ReleaseStockApplied(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE orders
		SET stock_applied = FALSE, updated_at = $2
		WHERE id = $1 AND stock_applied = TRUE
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var itemsJSON, addressJSON []byte
	var detailsJSON []byte
	var cancelReason sql.NullString

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.AccountID,
		&itemsJSON,
		&addressJSON,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&detailsJSON,
		&order.OrderStatus,
		&order.Total.Amount,
		&order.Total.Currency,
		&order.StockApplied,
		&cancelReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(detailsJSON) > 0 {
		order.PaymentDetails = &models.PaymentDetails{}
		if err := json.Unmarshal(detailsJSON, order.PaymentDetails); err != nil {
			return nil, fmt.Errorf("unmarshal payment details: %w", err)
		}
	}
	if cancelReason.Valid {
		order.CancelReason = cancelReason.String
	}

	return &order, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

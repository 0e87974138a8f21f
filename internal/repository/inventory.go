package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/logging"
)

// PostgresInventoryRepository implements InventoryRepository using
// PostgreSQL. Stock never goes negative: the decrement carries its own
// availability check in the WHERE clause, so check and write are one atomic
// statement.
type PostgresInventoryRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

var _ InventoryRepository = (*PostgresInventoryRepository)(nil)

// NewPostgresInventoryRepository creates a new PostgreSQL inventory
// repository.
func NewPostgresInventoryRepository(db *sql.DB, logger *logging.Logger) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{
		db:     db,
		logger: logger,
	}
}

// GetStock returns the available stock for a product.
func (r *PostgresInventoryRepository) GetStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT available_stock FROM inventory WHERE product_id = $1`,
		productID,
	).Scan(&stock)

	if err == sql.ErrNoRows {
		return 0, apperrors.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

// DecrementIfAvailable subtracts quantity only while enough stock remains.
// Zero rows affected means insufficient stock (or an unknown product); no
// partial effect is ever visible.
func (r *PostgresInventoryRepository) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inventory
		SET available_stock = available_stock - $2, updated_at = $3
		WHERE product_id = $1 AND available_stock >= $2`,
		productID, quantity, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		r.logger.Warn("Stock decrement rejected", logging.Fields{
			"product_id": productID,
			"quantity":   quantity,
		})
		return false, nil
	}
	return true, nil
}

// Increment adds quantity back to a product's stock.
func (r *PostgresInventoryRepository) Increment(ctx context.Context, productID string, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inventory
		SET available_stock = available_stock + $2, updated_at = $3
		WHERE product_id = $1`,
		productID, quantity, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

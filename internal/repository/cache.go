package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

const (
	orderKeyPrefix      = "order:"
	accountOrdersPrefix = "account_orders:"
	defaultCacheTTL     = 5 * time.Minute
)

// RedisOrderCache implements OrderCache using Redis.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

var _ OrderCache = (*RedisOrderCache)(nil)

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(cfg config.RedisConfig) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logging.New("order-cache"),
	}
}

// Get retrieves an order from cache. A miss returns (nil, nil).
func (c *RedisOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", logging.Fields{"order_id": id})
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, orderKeyPrefix+order.ID, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// Delete removes an order from cache.
func (c *RedisOrderCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, orderKeyPrefix+id).Err()
}

// accountOrdersEntry is the cached value for an account's order history: the
// first page plus the full match count, so a cached read reports the same
// total as the store.
type accountOrdersEntry struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
}

// GetByAccountID retrieves the cached first page of an account's orders
// together with the total order count. A miss returns (nil, 0, nil).
func (c *RedisOrderCache) GetByAccountID(ctx context.Context, accountID string) ([]*models.Order, int, error) {
	data, err := c.client.Get(ctx, accountOrdersPrefix+accountID).Bytes()
	if err == redis.Nil {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var entry accountOrdersEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, 0, err
	}
	return entry.Orders, entry.Total, nil
}

// SetByAccountID caches the first page of an account's orders with the total.
func (c *RedisOrderCache) SetByAccountID(ctx context.Context, accountID string, orders []*models.Order, total int) error {
	data, err := json.Marshal(accountOrdersEntry{Orders: orders, Total: total})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, accountOrdersPrefix+accountID, data, c.ttl).Err()
}

// InvalidateByAccountID removes an account's cached order list.
func (c *RedisOrderCache) InvalidateByAccountID(ctx context.Context, accountID string) error {
	return c.client.Del(ctx, accountOrdersPrefix+accountID).Err()
}

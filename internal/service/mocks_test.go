package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/models"
)

// memOrderRepo is an in-memory OrderRepository with the same conditional
// update semantics as the postgres implementation.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*models.Order)}
}

func cloneOrder(o *models.Order) *models.Order {
	clone := *o
	clone.Items = append([]models.OrderItem(nil), o.Items...)
	if o.PaymentDetails != nil {
		details := *o.PaymentDetails
		clone.PaymentDetails = &details
	}
	return &clone
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("duplicate order id %s", order.ID)
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *memOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r *memOrderRepo) List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]*models.Order, 0)
	for _, order := range r.orders {
		if filter.AccountID != "" && order.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != nil && order.OrderStatus != *filter.Status {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= len(matched) {
		return []*models.Order{}, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *memOrderRepo) UpdateStatusIfCurrent(ctx context.Context, id string, current, next models.OrderStatus, cancelReason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.OrderStatus != current {
		return false, nil
	}
	order.OrderStatus = next
	if cancelReason != "" {
		order.CancelReason = cancelReason
	}
	return true, nil
}

func (r *memOrderRepo) ConfirmPaymentIfPending(ctx context.Context, id string, details *models.PaymentDetails) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.PaymentStatus != models.PaymentStatusPending || order.OrderStatus == models.OrderStatusCancelled {
		return false, nil
	}
	order.PaymentStatus = models.PaymentStatusPaid
	if order.OrderStatus == models.OrderStatusPending {
		order.OrderStatus = models.OrderStatusProcessing
	}
	if details != nil {
		d := *details
		order.PaymentDetails = &d
	}
	return true, nil
}

func (r *memOrderRepo) RevertPaymentToPending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		order.PaymentStatus = models.PaymentStatusPending
		if order.OrderStatus == models.OrderStatusProcessing {
			order.OrderStatus = models.OrderStatusPending
		}
	}
	return nil
}

func (r *memOrderRepo) MarkPaymentFailedIfPending(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	order.PaymentStatus = models.PaymentStatusFailed
	return true, nil
}

func (r *memOrderRepo) ClaimStockApplied(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.StockApplied || order.OrderStatus == models.OrderStatusCancelled {
		return false, nil
	}
	order.StockApplied = true
	return true, nil
}

func (r *memOrderRepo) ReleaseStockApplied(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || !order.StockApplied {
		return false, nil
	}
	order.StockApplied = false
	return true, nil
}

// memInventoryRepo is an in-memory InventoryRepository with conditional
// decrement semantics.
type memInventoryRepo struct {
	mu            sync.Mutex
	stock         map[string]int
	failIncrement map[string]bool
}

func newMemInventoryRepo(stock map[string]int) *memInventoryRepo {
	s := make(map[string]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &memInventoryRepo{stock: s, failIncrement: make(map[string]bool)}
}

func (r *memInventoryRepo) GetStock(ctx context.Context, productID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stock[productID]
	if !ok {
		return 0, apperrors.ErrNotFound
	}
	return stock, nil
}

func (r *memInventoryRepo) DecrementIfAvailable(ctx context.Context, productID string, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stock, ok := r.stock[productID]
	if !ok || stock < quantity {
		return false, nil
	}
	r.stock[productID] = stock - quantity
	return true, nil
}

func (r *memInventoryRepo) Increment(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failIncrement[productID] {
		return fmt.Errorf("simulated increment failure for %s", productID)
	}
	if _, ok := r.stock[productID]; !ok {
		return apperrors.ErrNotFound
	}
	r.stock[productID] += quantity
	return nil
}

func (r *memInventoryRepo) stockOf(productID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[productID]
}

// noopCache satisfies OrderCache without caching anything.
type noopCache struct{}

func (noopCache) Get(ctx context.Context, id string) (*models.Order, error) { return nil, nil }
func (noopCache) Set(ctx context.Context, order *models.Order) error        { return nil }
func (noopCache) Delete(ctx context.Context, id string) error               { return nil }
func (noopCache) GetByAccountID(ctx context.Context, accountID string) ([]*models.Order, int, error) {
	return nil, 0, nil
}
func (noopCache) SetByAccountID(ctx context.Context, accountID string, orders []*models.Order, total int) error {
	return nil
}
func (noopCache) InvalidateByAccountID(ctx context.Context, accountID string) error { return nil }

// memCache is an in-memory OrderCache for tests that enable caching.
type memCache struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	accounts map[string]accountEntry
}

type accountEntry struct {
	orders []*models.Order
	total  int
}

func newMemCache() *memCache {
	return &memCache{
		orders:   make(map[string]*models.Order),
		accounts: make(map[string]accountEntry),
	}
}

func (c *memCache) Get(ctx context.Context, id string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	order, ok := c.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(order), nil
}

func (c *memCache) Set(ctx context.Context, order *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[order.ID] = cloneOrder(order)
	return nil
}

func (c *memCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	return nil
}

func (c *memCache) GetByAccountID(ctx context.Context, accountID string) ([]*models.Order, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.accounts[accountID]
	if !ok {
		return nil, 0, nil
	}
	return entry.orders, entry.total, nil
}

func (c *memCache) SetByAccountID(ctx context.Context, accountID string, orders []*models.Order, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[accountID] = accountEntry{orders: orders, total: total}
	return nil
}

func (c *memCache) InvalidateByAccountID(ctx context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, accountID)
	return nil
}

// stubAccountClient serves canned accounts and addresses.
type stubAccountClient struct {
	admins    map[string]bool
	addresses map[string]*models.Address // key: accountID + "/" + addressID
}

func (c *stubAccountClient) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return &models.Account{ID: accountID, IsAdmin: c.admins[accountID]}, nil
}

func (c *stubAccountClient) GetAddress(ctx context.Context, accountID, addressID string) (*models.Address, error) {
	address, ok := c.addresses[accountID+"/"+addressID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return address, nil
}

func (c *stubAccountClient) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	return c.admins[accountID], nil
}

// stubCatalogClient serves canned products.
type stubCatalogClient struct {
	products map[string]*models.Product
}

func (c *stubCatalogClient) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	product, ok := c.products[productID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return product, nil
}

// recordingPublisher counts published events by type.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	return p.record("created")
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	return p.record("status_changed")
}

func (p *recordingPublisher) PublishPaymentConfirmed(ctx context.Context, order *models.Order) error {
	return p.record("payment_confirmed")
}

func (p *recordingPublisher) PublishOrderCancelled(ctx context.Context, order *models.Order, reason string) error {
	return p.record("cancelled")
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

package models

// CreateOrderRequest is the order-creation payload. Prices are deliberately
// absent: name and price are snapshotted from the catalog server-side.
type CreateOrderRequest struct {
	Items             []CreateOrderItem `json:"items"`
	ShippingAddressID string            `json:"shipping_address_id"`
	PaymentMethod     PaymentMethod     `json:"payment_method"`
}

// CreateOrderItem references a product and quantity only.
type CreateOrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// ConfirmPaymentRequest is the payment confirmation payload.
type ConfirmPaymentRequest struct {
	Method  PaymentMethod   `json:"method"`
	Details *PaymentDetails `json:"details,omitempty"`
}

// UpdateOrderStatusRequest is the admin status-transition payload.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}

// CancelOrderRequest is the cancellation payload.
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderListFilter narrows and pages order listings.
type OrderListFilter struct {
	AccountID string
	Status    *OrderStatus
	Limit     int
	Offset    int
}

// InventoryItem is a productId/quantity pair for availability checks and
// stock mutations.
type InventoryItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Account is the read-only projection consumed from the Account Directory.
type Account struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"is_admin"`
}

// Address is a saved address owned by an account.
type Address struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// Product is the read-only projection consumed from the Catalog.
type Product struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Price          Money  `json:"price"`
	AvailableStock int    `json:"available_stock"`
}

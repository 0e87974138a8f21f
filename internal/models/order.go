package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodEsewa          PaymentMethod = "ESEWA"
	PaymentMethodOnlineGeneric  PaymentMethod = "ONLINE_GENERIC"
)

// IsOffline reports whether the method settles outside the payment gateway.
// Offline orders have no online confirmation step; they settle at delivery.
func (m PaymentMethod) IsOffline() bool {
	return m == PaymentMethodCashOnDelivery
}

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCashOnDelivery, PaymentMethodBankTransfer,
		PaymentMethodEsewa, PaymentMethodOnlineGeneric:
		return true
	}
	return false
}

// Money is an amount in minor units of a currency.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DefaultCurrency is applied when a price carries no currency.
const DefaultCurrency = "NPR"

// NewMoney builds a Money from a major-unit float, rounding to minor units.
func NewMoney(amount float64, currency string) Money {
	return Money{Amount: int64(amount*100 + 0.5), Currency: currency}
}

// ToFloat returns the amount in major units.
func (m Money) ToFloat() float64 {
	return float64(m.Amount) / 100
}

// OrderItem is a line item with name and price snapshotted at creation time.
// Snapshots are never recomputed from the live catalog.
type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   Money  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// ShippingAddress is a denormalized copy of the account's address captured at
// creation time. Later edits to the account's address book do not reach it.
type ShippingAddress struct {
	AddressID  string `json:"address_id"`
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

// PaymentDetails carries the payment metadata captured at confirmation.
type PaymentDetails struct {
	AccountNumber  string     `json:"account_number,omitempty"`
	BankName       string     `json:"bank_name,omitempty"`
	HolderName     string     `json:"holder_name,omitempty"`
	EsewaID        string     `json:"esewa_id,omitempty"`
	TransactionRef string     `json:"transaction_ref,omitempty"`
	PaymentDate    *time.Time `json:"payment_date,omitempty"`
}

// Order is the aggregate owned by the lifecycle manager.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	AccountID       string          `json:"account_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentDetails  *PaymentDetails `json:"payment_details,omitempty"`
	OrderStatus     OrderStatus     `json:"order_status"`
	Total           Money           `json:"total"`
	StockApplied    bool            `json:"stock_applied"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ComputeTotal sums unit price times quantity over the line items. The stored
// total must always equal this; it is recomputed whenever items are set.
func (o *Order) ComputeTotal() Money {
	var total int64
	currency := DefaultCurrency
	for _, item := range o.Items {
		total += item.UnitPrice.Amount * int64(item.Quantity)
		if item.UnitPrice.Currency != "" {
			currency = item.UnitPrice.Currency
		}
	}
	return Money{Amount: total, Currency: currency}
}

// IsTerminal reports whether no further status transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// statusTransitions is the full legal edge set: a forward-only path with
// cancellation reachable before shipment.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	return CanTransition(o.OrderStatus, OrderStatusCancelled)
}

// NewOrderID returns a fresh opaque order identifier.
func NewOrderID() string {
	return "ord_" + uuid.NewString()
}

// NewOrderNumber returns a human-readable order number.
func NewOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + raw[:6]
}

package service

import (
	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/models"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxReasonLength = 500
)

// ValidateCreateOrderRequest validates an order creation request.
func ValidateCreateOrderRequest(actorID string, req *models.CreateOrderRequest) error {
	if actorID == "" {
		return apperrors.NewValidationError("account_id", "acting account is required")
	}

	if len(req.Items) == 0 {
		return apperrors.NewValidationError("items", "at least one item is required")
	}

	for _, item := range req.Items {
		if item.ProductID == "" {
			return apperrors.NewValidationError("items", "product ID is required for every item")
		}
		if item.Quantity < 1 {
			return apperrors.NewValidationError("items", "quantity must be at least 1")
		}
	}

	if req.ShippingAddressID == "" {
		return apperrors.NewValidationError("shipping_address_id", "shipping address is required")
	}

	if !req.PaymentMethod.Valid() {
		return apperrors.NewValidationError("payment_method", "unknown payment method")
	}

	return nil
}

// ValidateConfirmPaymentRequest validates a payment confirmation request.
func ValidateConfirmPaymentRequest(req *models.ConfirmPaymentRequest) error {
	if !req.Method.Valid() {
		return apperrors.NewValidationError("method", "unknown payment method")
	}
	if req.Method.IsOffline() {
		return apperrors.NewValidationError("method", "offline payments have no confirmation step")
	}
	return nil
}

// ValidateCancellationReason validates an order cancellation reason.
func ValidateCancellationReason(reason string) error {
	if reason == "" {
		return apperrors.NewValidationError("reason", "cancellation reason is required")
	}
	if len(reason) > maxReasonLength {
		return apperrors.NewValidationError("reason", "cancellation reason too long")
	}
	return nil
}

// ValidateOrderListFilter validates and normalizes a list filter.
func ValidateOrderListFilter(filter *models.OrderListFilter) error {
	if filter.Limit < 0 {
		return apperrors.NewValidationError("limit", "limit cannot be negative")
	}
	if filter.Offset < 0 {
		return apperrors.NewValidationError("offset", "offset cannot be negative")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return apperrors.NewValidationError("status", "unknown order status")
	}

	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return nil
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

// ConfirmPayment handles POST /api/v1/orders/:id/payment
//
// Confirming an already-settled order returns 200 with the current state;
// the operation is idempotent end to end.
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	orderID := c.Param("id")

	// Payment confirmation is only meaningful to the order's owner (or an
	// admin resolving a support case); GetOrder enforces that visibility.
	if _, err := h.orderService.GetOrder(c.Request.Context(), orderID, actor); err != nil {
		handleError(c, err)
		return
	}

	order, err := h.orderService.ConfirmPayment(c.Request.Context(), orderID, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	h.logger.Info("Payment confirmation handled", logging.Fields{
		"order_id": orderID,
		"status":   order.PaymentStatus,
	})
	c.JSON(http.StatusOK, order)
}

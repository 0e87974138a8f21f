package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

// CreateOrder handles POST /api/v1/orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Failed to bind create request", logging.Fields{"error": err.Error()})
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actor, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), c.Param("id"), actor, req.Status)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	var req models.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /api/v1/orders (admin back-office listing)
func (h *Handlers) ListOrders(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	filter := &models.OrderListFilter{}

	if accountID := c.Query("account_id"); accountID != "" {
		filter.AccountID = accountID
	}
	if status := c.Query("status"); status != "" {
		s := models.OrderStatus(status)
		filter.Status = &s
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 1 {
		if filter.Limit == 0 {
			filter.Limit = 10
		}
		filter.Offset = (page - 1) * filter.Limit
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), actor, filter)
	if err != nil {
		handleError(c, err)
		return
	}

	pages := 0
	if filter.Limit > 0 {
		pages = (total + filter.Limit - 1) / filter.Limit
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"pages":  pages,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetMyOrders handles GET /api/v1/orders/my
func (h *Handlers) GetMyOrders(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}

	limit := 0
	offset := 0
	if l, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = l
	}
	if o, err := strconv.Atoi(c.Query("offset")); err == nil {
		offset = o
	}

	orders, total, err := h.orderService.GetMyOrders(c.Request.Context(), actor, limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/service"
)

// HeaderAccountID carries the authenticated actor, set by the upstream
// gateway.
const HeaderAccountID = "X-Account-ID"

// Handlers holds all HTTP handlers for the orders service.
type Handlers struct {
	orderService *service.OrderService
	config       *config.Config
	logger       *logging.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(orderService *service.OrderService, cfg *config.Config) *Handlers {
	return &Handlers{
		orderService: orderService,
		config:       cfg,
		logger:       logging.New("handlers"),
	}
}

// actorID extracts the acting account from the request. An empty value means
// the gateway did not authenticate the caller.
func actorID(c *gin.Context) (string, bool) {
	id := c.GetHeader(HeaderAccountID)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing account identity"})
		return "", false
	}
	return id, true
}

// handleError maps the error taxonomy onto HTTP status codes in one place.
func handleError(c *gin.Context, err error) {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrInsufficientStock):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

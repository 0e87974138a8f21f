package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/handlers"
	"github.com/sajilomart/orders-service/internal/metrics"
)

// Server wires the gin router onto a stoppable http.Server.
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
}

// New builds the router and registers all routes.
func New(h *handlers.Handlers, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())

	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
	router.GET("/version", h.Version)
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/my", h.GetMyOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.POST("/orders/:id/payment", h.ConfirmPayment)
		v1.PUT("/orders/:id/status", h.UpdateOrderStatus)
		v1.POST("/orders/:id/cancel", h.CancelOrder)
	}

	return &Server{
		config: cfg,
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Package metrics registers the service's Prometheus instruments and the
// gin middleware that feeds the HTTP ones.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersCreated counts orders successfully created, by payment method.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders successfully created.",
	}, []string{"payment_method"})

	// PaymentConfirmations counts payment confirmation outcomes.
	PaymentConfirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_payment_confirmations_total",
		Help: "Payment confirmation attempts by outcome.",
	}, []string{"outcome"})

	// StatusTransitions counts applied order status transitions.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_status_transitions_total",
		Help: "Applied order status transitions.",
	}, []string{"from", "to"})

	// StockDecrementFailures counts rejected or rolled-back stock
	// applications.
	StockDecrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_stock_decrement_failures_total",
		Help: "Stock applications rejected for insufficient stock.",
	})

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orders_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request duration for every route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

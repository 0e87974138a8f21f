package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/sajilomart/orders-service/internal/clients"
	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/events"
	"github.com/sajilomart/orders-service/internal/handlers"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/repository"
	"github.com/sajilomart/orders-service/internal/server"
	"github.com/sajilomart/orders-service/internal/service"
)

func main() {
	cfg := config.Load()
	logger := logging.New("orders-service")

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	orderRepo := repository.NewPostgresOrderRepository(db, logger)
	inventoryRepo := repository.NewPostgresInventoryRepository(db, logger)
	orderCache := repository.NewRedisOrderCache(cfg.Redis)

	accountClient := clients.NewHTTPAccountClient(cfg.AccountsService, logger)
	catalogClient := clients.NewHTTPCatalogClient(cfg.CatalogService, logger)

	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logger)
	defer eventPublisher.Close()

	inventoryService := service.NewInventoryService(inventoryRepo, orderRepo, logger)
	orderService := service.NewOrderService(
		orderRepo,
		orderCache,
		inventoryService,
		accountClient,
		catalogClient,
		eventPublisher,
		cfg,
	)

	h := handlers.NewHandlers(orderService, cfg)
	srv := server.New(h, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":           cfg.Server.Port,
			"order_caching":  cfg.Features.EnableOrderCaching,
			"order_events":   cfg.Features.EnableOrderEvents,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	eventConsumer := events.NewKafkaConsumer(cfg.Kafka, orderService, logger)
	go func() {
		if err := eventConsumer.Start(context.Background()); err != nil {
			logger.Error("Payments consumer stopped", logging.Fields{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eventConsumer.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited", nil)
}

func initDatabase(cfg *config.Config, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})
	return db, nil
}

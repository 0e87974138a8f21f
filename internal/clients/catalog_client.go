package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sajilomart/orders-service/internal/apperrors"
	"github.com/sajilomart/orders-service/internal/config"
	"github.com/sajilomart/orders-service/internal/logging"
	"github.com/sajilomart/orders-service/internal/models"
)

// CatalogClient fetches current product data. Order creation snapshots name
// and price from here; client-supplied prices are never trusted.
type CatalogClient interface {
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
}

// HTTPCatalogClient implements CatalogClient over HTTP.
type HTTPCatalogClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

var _ CatalogClient = (*HTTPCatalogClient)(nil)

// NewHTTPCatalogClient creates a new HTTP-based catalog client.
func NewHTTPCatalogClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// GetProduct fetches the current name, price and stock for a product.
func (c *HTTPCatalogClient) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Catalog request failed", logging.Fields{
			"product_id": productID,
			"error":      err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var product models.Product
		if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
			return nil, err
		}
		return &product, nil
	case http.StatusNotFound:
		return nil, apperrors.ErrNotFound
	default:
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}
}

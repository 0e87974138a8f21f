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

// AccountClient resolves actors and their saved addresses against the
// Account Directory.
type AccountClient interface {
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	GetAddress(ctx context.Context, accountID, addressID string) (*models.Address, error)
	IsAdmin(ctx context.Context, accountID string) (bool, error)
}

// HTTPAccountClient implements AccountClient over HTTP.
type HTTPAccountClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

var _ AccountClient = (*HTTPAccountClient)(nil)

// NewHTTPAccountClient creates a new HTTP-based account directory client.
func NewHTTPAccountClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPAccountClient {
	return &HTTPAccountClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// GetAccount fetches an account by id.
func (c *HTTPAccountClient) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	var account models.Account
	url := fmt.Sprintf("%s/api/v1/accounts/%s", c.baseURL, accountID)
	if err := c.getJSON(ctx, url, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAddress fetches a saved address, scoped to its owning account. A
// mismatched owner surfaces as NotFound from the directory.
func (c *HTTPAccountClient) GetAddress(ctx context.Context, accountID, addressID string) (*models.Address, error) {
	var address models.Address
	url := fmt.Sprintf("%s/api/v1/accounts/%s/addresses/%s", c.baseURL, accountID, addressID)
	if err := c.getJSON(ctx, url, &address); err != nil {
		return nil, err
	}
	if address.AccountID != "" && address.AccountID != accountID {
		return nil, apperrors.ErrNotFound
	}
	return &address, nil
}

// IsAdmin reports whether the account carries the admin capability.
func (c *HTTPAccountClient) IsAdmin(ctx context.Context, accountID string) (bool, error) {
	account, err := c.GetAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return account.IsAdmin, nil
}

func (c *HTTPAccountClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Account directory request failed", logging.Fields{
			"url":   url,
			"error": err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	default:
		return fmt.Errorf("account directory returned status %d", resp.StatusCode)
	}
}

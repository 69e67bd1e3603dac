package printful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/digitalrevolution/dr-backend/pkg/config"
	pkgerrors "github.com/digitalrevolution/dr-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.printful.com"
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 64 * 1024
	breakerName                 = "printful"
)

var errAPIKeyRequired = errors.New("printful api key is required")

// Client places production orders with Printful.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	storeID    string
	confirm    bool
	breaker    *gobreaker.CircuitBreaker[*OrderResult]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithBreakerSettings replaces the circuit breaker configuration.
func WithBreakerSettings(settings gobreaker.Settings) Option {
	return func(c *Client) {
		settings.Name = breakerName
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = countsAsHealthy
		}
		c.breaker = gobreaker.NewCircuitBreaker[*OrderResult](settings)
	}
}

// NewClient builds the Printful client from configuration.
func NewClient(cfg config.PrintfulConfig, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		apiKey:     apiKey,
		storeID:    strings.TrimSpace(cfg.StoreID),
		confirm:    cfg.ConfirmOrders,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		client.baseURL = strings.TrimSpace(cfg.BaseURL)
	}
	WithBreakerSettings(breakerSettings(cfg))(client)

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

func breakerSettings(cfg config.PrintfulConfig) gobreaker.Settings {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	probes := cfg.BreakerHalfOpenProbes
	if probes == 0 {
		probes = 1
	}
	return gobreaker.Settings{
		MaxRequests: probes,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
	}
}

// Rejections by Printful (bad address, unknown variant) say nothing about its
// availability and must not trip the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	return pkgerrors.CodeOf(err) == pkgerrors.CodeValidation
}

// Recipient is the ship-to block of an order.
type Recipient struct {
	Name        string `json:"name"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Item is one line, matched to a synced variant by its external id.
type Item struct {
	ExternalVariantID string `json:"external_variant_id"`
	Quantity          int    `json:"quantity"`
	RetailPrice       string `json:"retail_price,omitempty"`
	Name              string `json:"name,omitempty"`
}

// RetailCosts are the amounts the customer paid, shown on packing slips.
type RetailCosts struct {
	Currency string `json:"currency,omitempty"`
	Subtotal string `json:"subtotal,omitempty"`
	Discount string `json:"discount,omitempty"`
	Shipping string `json:"shipping,omitempty"`
	Tax      string `json:"tax,omitempty"`
}

// OrderRequest is the body of POST /orders.
type OrderRequest struct {
	ExternalID  string       `json:"external_id"`
	Shipping    string       `json:"shipping,omitempty"`
	Recipient   Recipient    `json:"recipient"`
	Items       []Item       `json:"items"`
	RetailCosts *RetailCosts `json:"retail_costs,omitempty"`
}

// OrderResult is the subset of the created order the shop keeps, plus the raw body
// for the audit trail.
type OrderResult struct {
	ID     int64
	Status string
	Raw    json.RawMessage
}

// CreateOrder submits a production order. Every failure is returned as a typed
// error: CodeValidation when Printful rejected the order, CodeDependency otherwise.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "printful client not configured")
	}
	if strings.TrimSpace(req.ExternalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external_id is required")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	result, err := c.breaker.Execute(func() (*OrderResult, error) {
		return c.createOrder(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "printful circuit open")
	}
	return result, err
}

func (c *Client) createOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal printful order")
	}

	url := c.buildURL("orders")
	if c.confirm {
		url += "?confirm=true"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build printful order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.storeID != "" {
		httpReq.Header.Set("X-PF-Store-Id", c.storeID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute printful order request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read printful order response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := pkgerrors.CodeDependency
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			code = pkgerrors.CodeValidation
		}
		return nil, pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(body)), "printful order request failed")
	}

	var apiResp struct {
		Code   int `json:"code"`
		Result struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode printful order response")
	}
	if apiResp.Result.ID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "printful order response missing id")
	}

	return &OrderResult{
		ID:     apiResp.Result.ID,
		Status: apiResp.Result.Status,
		Raw:    json.RawMessage(body),
	}, nil
}

func errorMessage(body []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

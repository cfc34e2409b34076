package cashfree

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hynox-org/aharraa-server/pkg/config"
	pkgerrors "github.com/Hynox-org/aharraa-server/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	defaultAPIVersion           = "2022-09-01"
	responseBodyReadLimit int64 = 4096
)

var errCredentialsRequired = errors.New("cashfree client id and secret are required")

// Client talks to the Cashfree PG REST API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiVersion   string
	clientID     string
	clientSecret string
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

// WithBaseURL overrides the environment derived base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient builds the gateway client from configuration.
func NewClient(cfg config.CashfreeConfig, opts ...Option) (*Client, error) {
	id := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if id == "" || secret == "" {
		return nil, errCredentialsRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      cfg.ResolvedBaseURL(),
		apiVersion:   version,
		clientID:     id,
		clientSecret: secret,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Customer identifies the buyer to the gateway.
type Customer struct {
	ID    string `json:"customer_id"`
	Phone string `json:"customer_phone"`
	Email string `json:"customer_email,omitempty"`
	Name  string `json:"customer_name,omitempty"`
}

// CreateOrderRequest opens a payment session for a local order.
type CreateOrderRequest struct {
	OrderID   string
	Amount    string
	Currency  string
	Customer  Customer
	ReturnURL string
}

// CreateOrderResponse carries what the frontend needs to start checkout.
type CreateOrderResponse struct {
	CFOrderID        FlexibleID `json:"cf_order_id"`
	OrderID          string     `json:"order_id"`
	OrderStatus      string     `json:"order_status"`
	PaymentSessionID string     `json:"payment_session_id"`
}

// Order is the subset of the gateway order resource we read back.
type Order struct {
	CFOrderID   FlexibleID `json:"cf_order_id"`
	OrderID     string     `json:"order_id"`
	OrderAmount float64    `json:"order_amount"`
	Currency    string     `json:"order_currency"`
	OrderStatus string     `json:"order_status"`
}

// Payment is one attempt recorded against a gateway order.
type Payment struct {
	CFPaymentID   FlexibleID `json:"cf_payment_id"`
	OrderID       string     `json:"order_id"`
	PaymentStatus string     `json:"payment_status"`
	PaymentAmount float64    `json:"payment_amount"`
	PaymentTime   string     `json:"payment_time"`
	BankReference string     `json:"bank_reference"`
	PaymentGroup  string     `json:"payment_group"`
}

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cashfree status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cashfree status %d", e.StatusCode)
}

// CreateOrder registers the order with the gateway and returns the session.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if strings.TrimSpace(req.Customer.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	body := map[string]any{
		"order_id":         req.OrderID,
		"order_amount":     json.Number(req.Amount),
		"order_currency":   req.Currency,
		"customer_details": req.Customer,
	}
	if req.ReturnURL != "" {
		body["order_meta"] = map[string]string{"return_url": req.ReturnURL}
	}

	var out CreateOrderResponse
	if err := c.do(ctx, http.MethodPost, "pg/orders", body, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create gateway order")
	}
	if out.PaymentSessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "gateway returned no payment session")
	}
	return &out, nil
}

// GetOrder reads the gateway's view of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var out Order
	if err := c.do(ctx, http.MethodGet, "pg/orders/"+url.PathEscape(trimmed), nil, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch gateway order")
	}
	return &out, nil
}

// GetPayments lists the payment attempts for an order, oldest first.
func (c *Client) GetPayments(ctx context.Context, orderID string) ([]Payment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cashfree client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var out []Payment
	if err := c.do(ctx, http.MethodGet, "pg/orders/"+url.PathEscape(trimmed)+"/payments", nil, &out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch gateway payments")
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-api-version", c.apiVersion)
	httpReq.Header.Set("x-client-id", c.clientID)
	httpReq.Header.Set("x-client-secret", c.clientSecret)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}

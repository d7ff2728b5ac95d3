package payhere

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured is returned when no app credentials were provided.
var ErrNotConfigured = errors.New("payhere merchant api not configured")

// PaymentDetails is one entry of the payment search response.
type PaymentDetails struct {
	PaymentID   int64   `json:"payment_id"`
	OrderID     string  `json:"order_id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Currency    string  `json:"currency"`
	Amount      float64 `json:"amount"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	Status int              `json:"status"`
	Msg    string           `json:"msg"`
	Data   []PaymentDetails `json:"data"`
}

// Client talks to the PayHere merchant API.
type Client struct {
	http      *resty.Client
	appID     string
	appSecret string

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a merchant API client for env.
func NewClient(env Environment, appID, appSecret string, timeout time.Duration) *Client {
	return NewClientWithBaseURL(env.APIBaseURL(), appID, appSecret, timeout)
}

// NewClientWithBaseURL is NewClient with an explicit API root.
func NewClientWithBaseURL(baseURL, appID, appSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:      resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		appID:     appID,
		appSecret: appSecret,
	}
}

// Configured reports whether app credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.appID != "" && c.appSecret != ""
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.appID, c.appSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&tok).
		Post("/oauth/token")
	if err != nil {
		return "", fmt.Errorf("payhere oauth: %w", err)
	}
	if resp.IsError() || tok.AccessToken == "" {
		return "", fmt.Errorf("payhere oauth: status %d", resp.StatusCode())
	}
	c.token = tok.AccessToken
	// refresh a little early
	c.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	return c.token, nil
}

// Retrieve looks up the gateway's view of an order.
func (c *Client) Retrieve(ctx context.Context, orderID string) (*PaymentDetails, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("order_id", orderID).
		SetResult(&out).
		Get("/payment/search")
	if err != nil {
		return nil, fmt.Errorf("payhere search: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("payhere search: status %d", resp.StatusCode())
	}
	if out.Status != 1 || len(out.Data) == 0 {
		return nil, fmt.Errorf("payhere search: %s", out.Msg)
	}
	return &out.Data[0], nil
}

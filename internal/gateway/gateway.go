// Package gateway is the payment-gateway client. Orders are created against
// the gateway's REST API before checkout; payment confirmations carry a
// signature the client verifies with the shared key secret.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type orderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers an order with the gateway and returns its order id.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff; 4xx responses are returned immediately.
func (c *Client) CreateOrder(ctx context.Context, amount int64, receipt string) (string, error) {
	body, err := json.Marshal(orderRequest{
		Amount:   amount,
		Currency: c.cfg.Currency,
		Receipt:  receipt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	var orderID string
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("create order: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("create order: gateway status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("create order: gateway status %d", resp.StatusCode)
		}

		var or orderResponse
		if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
			return fmt.Errorf("decode order response: %w", err)
		}
		orderID = or.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// VerifySignature checks a payment confirmation signature: the hex HMAC-SHA256
// of "orderID|paymentID" under the key secret. Constant-time compare.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.cfg.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Package treasury implements the disbursement transport that moves winnings
// from the escrow wallet to players. The transfer service is an external
// signer; this client only speaks its HTTP API and never touches keys.
package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/degendice/backend/internal/domain"
)

// ClientConfig holds the transfer service parameters. An empty BaseURL
// disables automated payouts.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the REST client for the treasury transfer service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new treasury client. A client with an empty base URL is
// valid but reports Configured() == false.
func New(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether automated payouts are available.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type transferRequest struct {
	Wallet string  `json:"wallet"`
	Amount float64 `json:"amount"`
}

type transferResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// Pay transfers amount to wallet and returns the transfer signature.
func (c *Client) Pay(ctx context.Context, wallet string, amount float64) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("treasury: not configured")
	}

	payload, err := json.Marshal(transferRequest{Wallet: wallet, Amount: amount})
	if err != nil {
		return "", fmt.Errorf("treasury: marshal transfer: %w", err)
	}

	body, err := c.doPost(ctx, "/transfer", payload)
	if err != nil {
		return "", fmt.Errorf("treasury: transfer to %s: %w", wallet, err)
	}

	var resp transferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("treasury: decode transfer response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("treasury: transfer to %s: %s", wallet, resp.Error)
	}
	if resp.Signature == "" {
		return "", fmt.Errorf("treasury: transfer to %s: empty signature", wallet)
	}
	return resp.Signature, nil
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// Balance returns the escrow balance available for payouts.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	if !c.Configured() {
		return 0, fmt.Errorf("treasury: not configured")
	}

	body, err := c.doGet(ctx, "/balance")
	if err != nil {
		return 0, fmt.Errorf("treasury: balance: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("treasury: decode balance response: %w", err)
	}
	return resp.Balance, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.Treasury = (*Client)(nil)

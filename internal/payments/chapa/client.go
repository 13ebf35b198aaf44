// Package chapa is a minimal client for the Chapa payment gateway:
// hosted checkout initialization and transaction verification.
package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status is the gateway's view of a transaction.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

type InitializeRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Email       string            `json:"email"`
	TxRef       string            `json:"tx_ref"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status      string `json:"status"`
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// Initialize creates a hosted checkout and returns its URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if env.Data.CheckoutURL == "" {
		return "", fmt.Errorf("chapa: initialize returned no checkout url: %s", env.Message)
	}
	return env.Data.CheckoutURL, nil
}

// Verify returns the gateway's authoritative status for txRef. Anything
// the gateway reports that is not success or failed maps to pending.
func (c *Client) Verify(ctx context.Context, txRef string) (Status, error) {
	env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+txRef, nil)
	if err != nil {
		return "", err
	}
	s := env.Data.Status
	if s == "" {
		s = env.Status
	}
	switch Status(s) {
	case StatusSuccess, StatusFailed:
		return Status(s), nil
	default:
		return StatusPending, nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("chapa: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("chapa: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return envelope{}, fmt.Errorf("chapa: %s %s: %d %s", method, path, resp.StatusCode, env.Message)
	}
	return env, nil
}

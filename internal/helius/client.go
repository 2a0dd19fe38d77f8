// Package helius is a client for the Helius enhanced transaction-history API.
package helius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.helius.xyz"
	DefaultTimeout    = 30 * time.Second
	DefaultRetryDelay = 5 * time.Second
)

// RetryPolicy controls recovery from rate-limit (429) responses.
// MaxAttempts of 0 retries until the context is cancelled, which matches
// the worker's historical behavior; tests override it with a small bound.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy retries rate limits forever with a fixed delay.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 0, Delay: DefaultRetryDelay}

// Client talks to the enhanced-transactions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retry   RetryPolicy
	logger  *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithRetryPolicy sets the rate-limit retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new history API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
		retry:   DefaultRetryPolicy,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetTransactions fetches one page of an address's history, newest first.
// A non-empty before cursor resumes the walk below that signature.
// Rate-limit responses are retried per the client's RetryPolicy; any other
// failure is returned to the caller.
func (c *Client) GetTransactions(ctx context.Context, address, before string) ([]Transaction, error) {
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	if before != "" {
		q.Set("before", before)
	}
	fetchURL := fmt.Sprintf("%s/v0/addresses/%s/transactions?%s", c.baseURL, address, q.Encode())

	for attempt := 1; ; attempt++ {
		txs, retryable, err := c.getPage(ctx, fetchURL)
		if err == nil {
			return txs, nil
		}
		if !retryable {
			return nil, err
		}
		if c.retry.MaxAttempts > 0 && attempt >= c.retry.MaxAttempts {
			return nil, fmt.Errorf("rate limited after %d attempts: %w", attempt, err)
		}

		c.logger.Printf("rate limited for %s, retrying in %v", address, c.retry.Delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retry.Delay):
		}
	}
}

// getPage performs a single request. The bool return marks rate-limit
// errors, the only retryable kind.
func (c *Client) getPage(ctx context.Context, fetchURL string) ([]Transaction, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("rate limited (429)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var txs []Transaction
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, false, fmt.Errorf("unmarshal transactions: %w", err)
	}

	return txs, false, nil
}

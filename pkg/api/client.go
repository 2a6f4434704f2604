package api

// HOSTED BACKEND CLIENT

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type Account struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type QuoteLine struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

type QuoteRequest struct {
	Reference string              `json:"reference"`
	AccountID string              `json:"account_id"`
	Product   string              `json:"product"`
	Areas     []string            `json:"areas"`
	FreeAreas []string            `json:"free_areas,omitempty"`
	AdSize    string              `json:"ad_size,omitempty"`
	Leaflet   string              `json:"leaflet_size,omitempty"`
	Months    int                 `json:"months"`
	Schedule  map[string][]string `json:"schedule"`
	Vouchers  []string            `json:"vouchers,omitempty"`
	Lines     []QuoteLine         `json:"lines"`
	Currency  string              `json:"currency"`
	Net       string              `json:"net"`
	VAT       string              `json:"vat"`
	Total     string              `json:"total"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// UpsertAccount creates or updates the customer account and returns its backend ID.
func (c *Client) UpsertAccount(ctx context.Context, acc Account) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/accounts/"+url.PathEscape(acc.ExternalID), acc, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// CreateQuote stores the quote and returns its backend ID. Posting the same
// reference twice returns the existing record.
func (c *Client) CreateQuote(ctx context.Context, q QuoteRequest) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/quotes", q, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

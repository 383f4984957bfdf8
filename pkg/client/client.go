// Package client is a small HTTP client for a running memoryapi server.
package client

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

	"github.com/sumrendra/memory-api/pkg/memory"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-2xx response decoded from the server's error payload.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Detail     any    `json:"detail"`
	Retryable  bool   `json:"retryable"`
}

func (e *APIError) Error() string {
	if e.Detail == nil {
		return fmt.Sprintf("memoryapi: HTTP %d: %s", e.StatusCode, e.Message)
	}
	detail, ok := e.Detail.(string)
	if !ok {
		raw, _ := json.Marshal(e.Detail)
		detail = string(raw)
	}
	return fmt.Sprintf("memoryapi: HTTP %d: %s: %s", e.StatusCode, e.Message, detail)
}

// Client calls the memoryapi HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at target, e.g. http://localhost:8081.
func New(target string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}

	return &Client{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Store stores text under docID.
func (c *Client) Store(ctx context.Context, req memory.StoreRequest) (*memory.StoreResult, error) {
	var out memory.StoreResult
	if err := c.do(ctx, http.MethodPost, "/memory/store", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns the chunks closest to req.Query.
func (c *Client) Search(ctx context.Context, req memory.SearchRequest) (*memory.SearchResult, error) {
	var out memory.SearchResult
	if err := c.do(ctx, http.MethodPost, "/memory/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes every chunk of docID.
func (c *Client) Delete(ctx context.Context, docID string) (*memory.DeleteResult, error) {
	var out memory.DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/memory/"+url.PathEscape(docID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Ready checks that the server can reach its chunk store.
func (c *Client) Ready(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ready", nil, nil)
}

// Config returns the server's configuration report.
func (c *Client) Config(ctx context.Context) (*memory.ConfigReport, error) {
	var out memory.ConfigReport
	if err := c.do(ctx, http.MethodGet, "/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to memoryapi at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jerr := json.Unmarshal(raw, apiErr); jerr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

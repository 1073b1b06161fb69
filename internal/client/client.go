// Package client provides a Go SDK for talking to one adaptive-replication
// node's client-facing KV surface: create/read/update/remove_replica over
// HTTP+JSON (spec.md §4.5, §6).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a single node. That node is responsible for coordinating
// replication and talking to other DCs; the client has no cluster-wide
// logic of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StrategyParams mirrors registry.StrategyParams for wire purposes without
// the client needing to import the server's internal packages.
type StrategyParams struct {
	DecayTime     int64   `json:"decay_time,omitempty"`
	DecayFactor   float64 `json:"decay_factor,omitempty"`
	ReplThreshold float64 `json:"repl_threshold,omitempty"`
	RmvThreshold  float64 `json:"rmv_threshold,omitempty"`
	MaxStrength   float64 `json:"max_strength,omitempty"`
	RStrength     float64 `json:"rstrength,omitempty"`
	WStrength     float64 `json:"wstrength,omitempty"`
	MinDCsNumber  int     `json:"min_dcs_number,omitempty"`
}

// CreateResponse is returned after a successful create.
type CreateResponse struct {
	Key       string `json:"key"`
	RequestID string `json:"request_id"`
}

// GetResponse is returned after a successful read.
type GetResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	RequestID string `json:"request_id"`
}

// Create stores a brand-new key=value pair. strategy may be empty to use
// the node's default. params may be nil to use the node's default params.
func (c *Client) Create(ctx context.Context, key, value, strategy string, params *StrategyParams) (*CreateResponse, error) {
	body, _ := json.Marshal(map[string]any{"value": value, "strategy": strategy, "params": params})

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PUT request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result CreateResponse
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// Get retrieves the value for key, triggering remote fetch-and-possibly-
// replicate if this node doesn't already hold a local copy (spec.md §4.5).
func (c *Client) Get(ctx context.Context, key string) (*GetResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var result GetResponse
	return &result, json.NewDecoder(resp.Body).Decode(&result)
}

// Update overwrites the value for an existing key.
func (c *Client) Update(ctx context.Context, key, value string) error {
	body, _ := json.Marshal(map[string]string{"value": value})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Delete evicts the local replica of key (remove_replica) — the key itself
// may persist at other DCs.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE request failed: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a key does not exist anywhere reachable.
var ErrNotFound = fmt.Errorf("key not found")

// APIError carries the HTTP status and the error message from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

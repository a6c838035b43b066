package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imgvault/internal/batch"
	"imgvault/internal/optimizer"
	"imgvault/internal/services"
)

// Client talks to a running API server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a client for baseURL (e.g. "http://127.0.0.1:7488").
// A bare host:port is accepted.
func NewClient(baseURL, token string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/ping", nil)
}

// Optimize converts one asset.
func (c *Client) Optimize(ctx context.Context, id int64) (optimizer.Outcome, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, "/api/assets/"+strconv.FormatInt(id, 10)+"/optimize", &resp); err != nil {
		return optimizer.Outcome{}, err
	}
	return ToOutcome(resp), nil
}

// Restore restores one asset.
func (c *Client) Restore(ctx context.Context, id int64) (optimizer.Outcome, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, "/api/assets/"+strconv.FormatInt(id, 10)+"/restore", &resp); err != nil {
		return optimizer.Outcome{}, err
	}
	return ToOutcome(resp), nil
}

// RunBatchStep runs one server-side batch step.
func (c *Client) RunBatchStep(ctx context.Context) (batch.StepResult, error) {
	var resp StepResponse
	if err := c.do(ctx, http.MethodPost, "/api/batch/step", &resp); err != nil {
		return batch.StepResult{}, err
	}
	return ToStepResult(resp), nil
}

// RestoreAll restores every vaulted asset.
func (c *Client) RestoreAll(ctx context.Context) (RestoreAllResponse, error) {
	var resp RestoreAllResponse
	err := c.do(ctx, http.MethodPost, "/api/restore-all", &resp)
	return resp, err
}

// Inventory classifies the library.
func (c *Client) Inventory(ctx context.Context) (InventoryResponse, error) {
	var resp InventoryResponse
	err := c.do(ctx, http.MethodPost, "/api/inventory", &resp)
	return resp, err
}

// Status returns vault health and the pending count.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set(headerRequestID, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return statusError(resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int, msg string) error {
	var marker error
	switch code {
	case http.StatusServiceUnavailable:
		marker = services.ErrVaultUnhealthy
	case http.StatusBadRequest:
		marker = services.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		marker = services.ErrConfiguration
	default:
		marker = services.ErrStore
	}
	return services.Wrap(marker, "api", "client", fmt.Sprintf("http %d: %s", code, msg), nil)
}

// Package aiclient calls the external insight generation service.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rapport/pkg/models"
)

// ErrUpstream marks a non-2xx answer from the generation service.
var ErrUpstream = errors.New("ai service error")

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type GenerateRequest struct {
	Kind        models.InsightKind `json:"kind"`
	ContactName string             `json:"contact_name"`
	Prompt      string             `json:"prompt"`
}

type generateResponse struct {
	Items []models.InsightItem `json:"items"`
}

// Generate asks the service for insight items. The service is opaque: the
// prompt is passed through untouched.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([]models.InsightItem, error) {
	var out generateResponse
	if err := c.postJSON(ctx, "/v1/generate", req, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.InsightItem{}
	}
	return out.Items, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status=%d body=%s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

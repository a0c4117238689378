// Package embed provides an HTTP client for text-embedding backends exposing
// the Ollama-style /api/embeddings endpoint.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "nomic-embed-text"
	defaultTimeout = 30 * time.Second
)

// Config holds embedding client configuration.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client calls a remote embedding service.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// EmbeddingRequest is the request body for the /api/embeddings endpoint.
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse is the response from the /api/embeddings endpoint.
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewClient constructs a Client, applying defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: cfg.BaseURL, model: cfg.Model, httpClient: httpClient}
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(EmbeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: request failed: %s", resp.Status)
	}

	var result EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embed: backend returned an empty vector")
	}

	return result.Embedding, nil
}

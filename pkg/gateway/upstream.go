package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Upstream is the opaque text-in/text-out model call. The gateway adds no
// retry or backpressure logic of its own around it.
type Upstream interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// EchoUpstream answers with the prompt itself. The default for local
// development and tests.
type EchoUpstream struct{}

// Invoke echoes the prompt.
func (EchoUpstream) Invoke(_ context.Context, prompt string) (string, error) {
	return "Echo: " + prompt, nil
}

// HTTPUpstreamConfig holds HTTP upstream configuration.
type HTTPUpstreamConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// HTTPUpstream calls an Ollama-style /api/generate endpoint.
type HTTPUpstream struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// GenerateRequest is the request body for the /api/generate endpoint.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// GenerateResponse is the response from the /api/generate endpoint.
type GenerateResponse struct {
	Response string `json:"response"`
}

// NewHTTPUpstream constructs an HTTPUpstream, applying defaults.
func NewHTTPUpstream(cfg HTTPUpstreamConfig) *HTTPUpstream {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPUpstream{baseURL: cfg.BaseURL, model: cfg.Model, httpClient: httpClient}
}

// Invoke forwards the prompt and returns the generated text.
func (u *HTTPUpstream) Invoke(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(GenerateRequest{Model: u.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("upstream: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("upstream: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream: request failed: %s", resp.Status)
	}

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("upstream: decode response: %w", err)
	}
	return result.Response, nil
}

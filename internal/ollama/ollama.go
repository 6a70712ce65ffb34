// Package ollama provides a client for local Ollama text generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sgx-labs/noter/internal/config"
)

// maxResponseBytes caps decoded response bodies.
const maxResponseBytes = 10 * 1024 * 1024

// Client talks to a local Ollama instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for baseURL after checking that it points at
// a loopback host. An empty baseURL means the default local instance.
func NewClient(baseURL string) (*Client, error) {
	u, err := config.OllamaURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    u,
	}, nil
}

// NewClientWithURL creates a client with a specific base URL.
// Used for testing. No localhost validation is performed.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Model represents an Ollama model from /api/tags.
type Model struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// embedModels are known embedding-only models that can't do generation.
var embedModels = map[string]bool{
	"nomic-embed-text":        true,
	"nomic-embed-text-v2-moe": true,
	"mxbai-embed-large":       true,
	"all-minilm":              true,
	"snowflake-arctic-embed":  true,
	"snowflake-arctic-embed2": true,
	"bge-m3":                  true,
}

// ListChatModels returns installed models that can generate text.
func (c *Client) ListChatModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var chat []Model
	for _, m := range tags.Models {
		baseName := m.Name
		if idx := strings.Index(baseName, ":"); idx > 0 {
			baseName = baseName[:idx]
		}
		if embedModels[baseName] {
			continue
		}
		chat = append(chat, m)
	}
	return chat, nil
}

// preferredModels lists models in preference order (smallest/fastest first).
var preferredModels = []string{
	"llama3.2:1b", "llama3.2:3b", "llama3.2",
	"qwen2.5:3b", "qwen2.5:7b", "qwen2.5",
	"mistral", "gemma2", "phi3",
}

// PickBestModel selects an installed chat model, preferring small ones.
// Returns empty string if none is installed.
func (c *Client) PickBestModel(ctx context.Context) (string, error) {
	models, err := c.ListChatModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", nil
	}

	available := make(map[string]bool, len(models))
	for _, m := range models {
		available[m.Name] = true
	}
	for _, pref := range preferredModels {
		if available[pref] {
			return pref, nil
		}
	}
	return models[0].Name, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends prompt with an optional system instruction and returns the
// trimmed response text.
func (c *Client) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to Ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("Ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}

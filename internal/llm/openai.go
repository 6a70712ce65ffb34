package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	maxResponseBytes     = 10 * 1024 * 1024
)

type openAIClientConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// openAIClient speaks the chat completions API of OpenAI and of local
// servers that mimic it (LM Studio, llama.cpp, vLLM).
type openAIClient struct {
	httpClient *http.Client
	provider   string
	model      string
	baseURL    string
	apiKey     string
}

func newOpenAIClient(cfg openAIClientConfig) (*openAIClient, error) {
	provider := normalizeProvider(cfg.Provider)
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	switch provider {
	case "openai":
		if apiKey == "" {
			return nil, errors.New("openai provider requires an API key (set NOTER_AI_API_KEY or OPENAI_API_KEY)")
		}
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
	case "openai-compatible":
		if baseURL == "" {
			return nil, errors.New("openai-compatible provider requires a base URL (set NOTER_AI_BASE_URL or ai_base_url)")
		}
	default:
		return nil, fmt.Errorf("unknown chat provider: %q", cfg.Provider)
	}

	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if u.Path == "" {
		baseURL += "/v1"
	}

	return &openAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		provider:   provider,
		model:      strings.TrimSpace(cfg.Model),
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

func (c *openAIClient) Provider() string { return c.provider }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *openAIClient) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	if model == "" {
		model = c.model
	}
	if model == "" {
		return "", errors.New("no model configured (set NOTER_AI_MODEL or ai_model)")
	}

	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}

	var result chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.provider)
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// PickBestModel returns the configured model. Without one, hosted OpenAI
// gets a small default and compatible servers report their first model.
func (c *openAIClient) PickBestModel(ctx context.Context) (string, error) {
	if c.model != "" {
		return c.model, nil
	}
	if c.provider == "openai" {
		return defaultOpenAIModel, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connect to %s: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}

	var models modelsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&models); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(models.Data) == 0 {
		return "", nil
	}
	return models.Data[0].ID, nil
}

func (c *openAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *openAIClient) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%s returned %d: %s", c.provider, resp.StatusCode, apiErr.Error.Message)
	}
	return fmt.Errorf("%s returned %d: %s", c.provider, resp.StatusCode, strings.TrimSpace(string(raw)))
}

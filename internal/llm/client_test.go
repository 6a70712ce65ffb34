package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/sgx-labs/noter/internal/config"
)

func TestNewClient_ProviderSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
		want string
	}{
		{"auto prefers ollama", config.AIConfig{Provider: "auto", BaseURL: config.DefaultOllamaURL, APIKey: "sk-test"}, "ollama"},
		{"empty means auto", config.AIConfig{BaseURL: config.DefaultOllamaURL}, "ollama"},
		{"auto falls back to openai for remote ollama", config.AIConfig{Provider: "auto", BaseURL: "http://gpu.example.com:11434", APIKey: "sk-test"}, "openai"},
		{"explicit openai", config.AIConfig{Provider: "OpenAI", APIKey: "sk-test"}, "openai"},
		{"explicit compatible", config.AIConfig{Provider: "openai-compatible", BaseURL: "http://localhost:1234"}, "openai-compatible"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if client.Provider() != tt.want {
				t.Errorf("Provider() = %q, want %q", client.Provider(), tt.want)
			}
		})
	}
}

func TestNewClient_AutoOpenAIIgnoresOllamaURL(t *testing.T) {
	client, err := NewClient(config.AIConfig{Provider: "auto", BaseURL: "http://gpu.example.com:11434", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	oc, ok := client.(*openAIClient)
	if !ok {
		t.Fatalf("expected *openAIClient, got %T", client)
	}
	if oc.baseURL != defaultOpenAIBaseURL {
		t.Errorf("baseURL = %q, want %q", oc.baseURL, defaultOpenAIBaseURL)
	}
}

func TestNewClient_AutoFallsBackWhenOllamaIsDown(t *testing.T) {
	client, err := NewClient(config.AIConfig{Provider: "auto", BaseURL: "http://127.0.0.1:1", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.Provider() != "ollama" {
		t.Fatalf("Provider() before use = %q, want ollama", client.Provider())
	}

	model, err := client.PickBestModel(context.Background())
	if err != nil {
		t.Fatalf("PickBestModel: %v", err)
	}
	if model != defaultOpenAIModel {
		t.Errorf("model = %q, want %q", model, defaultOpenAIModel)
	}
	if client.Provider() != "openai" {
		t.Errorf("Provider() after use = %q, want openai", client.Provider())
	}
}

func TestFallbackClient_Generate(t *testing.T) {
	refused := fmt.Errorf("connect to Ollama: %w", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	t.Run("switches on dial failure", func(t *testing.T) {
		primary := &fakeClient{err: refused}
		secondary := &fakeClient{model: "gpt-4o-mini", reply: "Shipped the release."}
		c := &fallbackClient{primary: primary, secondary: secondary}

		got, err := c.Generate(context.Background(), "llama3.2", "sys", "notes")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if got != "Shipped the release." || secondary.gotModel != "gpt-4o-mini" {
			t.Errorf("got %q via model %q", got, secondary.gotModel)
		}

		// Later calls skip the dead primary.
		primary.gotModel = ""
		if _, err := c.Generate(context.Background(), "gpt-4o-mini", "sys", "notes"); err != nil {
			t.Fatalf("second Generate: %v", err)
		}
		if primary.gotModel != "" {
			t.Error("primary called after switching")
		}
	})

	t.Run("keeps other errors", func(t *testing.T) {
		boom := errors.New("Ollama returned 500: out of memory")
		secondary := &fakeClient{model: "gpt-4o-mini"}
		c := &fallbackClient{primary: &fakeClient{err: boom}, secondary: secondary}

		if _, err := c.Generate(context.Background(), "llama3.2", "sys", "notes"); !errors.Is(err, boom) {
			t.Fatalf("expected primary error, got %v", err)
		}
		if secondary.gotModel != "" || secondary.pickCalls != 0 {
			t.Error("secondary used for a non-dial error")
		}
	})

	t.Run("empty primary model", func(t *testing.T) {
		c := &fallbackClient{primary: &fakeClient{}, secondary: &fakeClient{model: "gpt-4o-mini"}}
		model, err := c.PickBestModel(context.Background())
		if err != nil || model != "gpt-4o-mini" {
			t.Fatalf("PickBestModel = %q, %v", model, err)
		}
	})
}

func TestNewClient_Errors(t *testing.T) {
	if _, err := NewClient(config.AIConfig{Provider: "none"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}

	_, err := NewClient(config.AIConfig{Provider: "openai"})
	if err == nil || !strings.Contains(err.Error(), "requires an API key") {
		t.Errorf("expected missing-key error, got %v", err)
	}

	_, err = NewClient(config.AIConfig{Provider: "openai-compatible"})
	if err == nil || !strings.Contains(err.Error(), "requires a base URL") {
		t.Errorf("expected missing-base-url error, got %v", err)
	}

	_, err = NewClient(config.AIConfig{Provider: "claude"})
	if err == nil || !strings.Contains(err.Error(), "unknown chat provider") {
		t.Errorf("expected unknown-provider error, got %v", err)
	}

	_, err = NewClient(config.AIConfig{Provider: "auto", BaseURL: "http://gpu.example.com:11434"})
	if err == nil || !strings.Contains(err.Error(), "no chat provider available") {
		t.Errorf("expected no-provider error, got %v", err)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	client, err := newOpenAIClient(openAIClientConfig{
		Provider: "openai",
		APIKey:   "sk-test",
		Model:    "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.String() != defaultOpenAIBaseURL+"/chat/completions" {
				t.Errorf("unexpected URL %s", req.URL)
			}
			if got := req.Header.Get("Authorization"); got != "Bearer sk-test" {
				t.Errorf("Authorization = %q", got)
			}
			body, _ := io.ReadAll(req.Body)
			defer req.Body.Close()

			var payload chatRequest
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if payload.Model != "gpt-4o-mini" || len(payload.Messages) != 2 {
				t.Errorf("unexpected payload: %+v", payload)
			}
			if payload.Messages[0].Role != "system" || payload.Messages[0].Content != "Summarize." {
				t.Errorf("unexpected system message: %+v", payload.Messages[0])
			}
			return jsonResponse(http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  Wrote tests.  "}}]}`), nil
		}),
	}

	got, err := client.Generate(context.Background(), "", "Summarize.", "### 09:00\n\nwrote tests\n")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Wrote tests." {
		t.Errorf("Generate = %q", got)
	}
}

func TestOpenAI_GenerateReportsAPIError(t *testing.T) {
	client, err := newOpenAIClient(openAIClientConfig{Provider: "openai", APIKey: "sk-bad", Model: "m"})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`), nil
		}),
	}

	_, err = client.Generate(context.Background(), "", "", "hi")
	if err == nil || !strings.Contains(err.Error(), "invalid api key") || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected API error message, got %v", err)
	}
}

func TestOpenAICompatible_PickBestModel(t *testing.T) {
	client, err := newOpenAIClient(openAIClientConfig{
		Provider: "openai-compatible",
		BaseURL:  "http://localhost:1234",
	})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}
	if client.baseURL != "http://localhost:1234/v1" {
		t.Errorf("baseURL = %q", client.baseURL)
	}
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/models" {
				t.Errorf("unexpected path %s", req.URL.Path)
			}
			if req.Header.Get("Authorization") != "" {
				t.Error("expected no Authorization header without a key")
			}
			return jsonResponse(http.StatusOK, `{"data":[{"id":"qwen2.5-7b-instruct"},{"id":"other"}]}`), nil
		}),
	}

	got, err := client.PickBestModel(context.Background())
	if err != nil {
		t.Fatalf("PickBestModel: %v", err)
	}
	if got != "qwen2.5-7b-instruct" {
		t.Errorf("PickBestModel = %q", got)
	}
}

func TestOpenAI_PickBestModelDefaults(t *testing.T) {
	client, err := newOpenAIClient(openAIClientConfig{Provider: "openai", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}
	got, err := client.PickBestModel(context.Background())
	if err != nil || got != defaultOpenAIModel {
		t.Fatalf("PickBestModel = %q, %v", got, err)
	}
}

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

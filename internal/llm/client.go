// Package llm selects a chat back-end for note summaries and adapts it to
// the notes.Summarizer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sgx-labs/noter/internal/config"
	"github.com/sgx-labs/noter/internal/ollama"
)

// ErrDisabled is returned by NewClient when the provider is "none".
var ErrDisabled = errors.New("summarizer disabled (ai_provider=none)")

// Client is a provider-agnostic interface for chat generation.
type Client interface {
	// Generate sends prompt under a system instruction and returns the reply.
	Generate(ctx context.Context, model, system, prompt string) (string, error)
	// PickBestModel returns a usable model name, or "" if none is available.
	PickBestModel(ctx context.Context) (string, error)
	Provider() string
}

// NewClient constructs a chat client for the configured provider.
//
// Provider selection:
//   - ollama|openai|openai-compatible: that provider only
//   - none: ErrDisabled
//   - auto (default): local Ollama first, switching to OpenAI when an API key
//     is set and Ollama is unreachable or has no chat model
func NewClient(cfg config.AIConfig) (Client, error) {
	providers := providerOrder(cfg)

	var clients []Client
	var errs []string
	for _, provider := range providers {
		client, err := newClientForProvider(provider, cfg)
		if errors.Is(err, ErrDisabled) {
			return nil, err
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", provider, err))
			continue
		}
		clients = append(clients, client)
	}
	switch len(clients) {
	case 0:
		return nil, fmt.Errorf("no chat provider available (%s)", strings.Join(errs, "; "))
	case 1:
		return clients[0], nil
	default:
		return &fallbackClient{primary: clients[0], secondary: clients[1]}, nil
	}
}

func providerOrder(cfg config.AIConfig) []string {
	p := normalizeProvider(cfg.Provider)
	if p != "auto" {
		return []string{p}
	}
	order := []string{"ollama"}
	if strings.TrimSpace(cfg.APIKey) != "" {
		order = append(order, "openai")
	}
	return order
}

func newClientForProvider(provider string, cfg config.AIConfig) (Client, error) {
	switch provider {
	case "ollama":
		c, err := ollama.NewClient(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		return &ollamaClient{client: c}, nil
	case "openai", "openai-compatible":
		baseURL := cfg.BaseURL
		// In auto mode BaseURL carries the Ollama URL, which the hosted
		// OpenAI route must not inherit.
		if provider == "openai" && normalizeProvider(cfg.Provider) == "auto" {
			baseURL = ""
		}
		return newOpenAIClient(openAIClientConfig{
			Provider: provider,
			Model:    cfg.Model,
			BaseURL:  baseURL,
			APIKey:   cfg.APIKey,
		})
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown chat provider: %q", provider)
	}
}

func normalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" {
		return "auto"
	}
	return p
}

type ollamaClient struct {
	client *ollama.Client
}

func (c *ollamaClient) Provider() string { return "ollama" }

func (c *ollamaClient) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	return c.client.Generate(ctx, model, system, prompt)
}

func (c *ollamaClient) PickBestModel(ctx context.Context) (string, error) {
	return c.client.PickBestModel(ctx)
}

// fallbackClient routes to primary until primary cannot be reached or has
// no chat model, then stays on secondary.
type fallbackClient struct {
	primary   Client
	secondary Client

	mu       sync.Mutex
	switched bool
}

func (c *fallbackClient) active() Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switched {
		return c.secondary
	}
	return c.primary
}

func (c *fallbackClient) fallBack() Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switched = true
	return c.secondary
}

func (c *fallbackClient) Provider() string { return c.active().Provider() }

func (c *fallbackClient) PickBestModel(ctx context.Context) (string, error) {
	cur := c.active()
	model, err := cur.PickBestModel(ctx)
	if cur == c.secondary || (err == nil && model != "") || (err != nil && !isUnreachable(err)) {
		return model, err
	}
	return c.fallBack().PickBestModel(ctx)
}

// Generate re-picks the model after switching, since a model name chosen for
// one provider means nothing to the other.
func (c *fallbackClient) Generate(ctx context.Context, model, system, prompt string) (string, error) {
	cur := c.active()
	out, err := cur.Generate(ctx, model, system, prompt)
	if cur == c.secondary || err == nil || !isUnreachable(err) {
		return out, err
	}
	next := c.fallBack()
	model, err = next.PickBestModel(ctx)
	if err != nil {
		return "", fmt.Errorf("pick %s model: %w", next.Provider(), err)
	}
	if model == "" {
		return "", fmt.Errorf("%w from %s", ErrNoModel, next.Provider())
	}
	return next.Generate(ctx, model, system, prompt)
}

// isUnreachable reports whether err comes from failing to dial the server.
func isUnreachable(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

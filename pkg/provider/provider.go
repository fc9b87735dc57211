// Package provider adapts chat completion APIs behind one small interface.
package provider

import (
	"context"
	"fmt"
)

// Provider is an interface for chat completion providers
type Provider interface {
	// Complete makes one completion call
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Message is a single conversation turn sent to the provider
type Message struct {
	Role    string // user, assistant
	Content string
}

// Request contains the request parameters for a completion call
type Request struct {
	Model        string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// Response contains the completion
type Response struct {
	Text  string
	Usage *TokenUsage
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Config carries one provider's credentials and default model
type Config struct {
	APIKey string
	Model  string
}

// DefaultMaxTokens bounds completions when the request does not.
const DefaultMaxTokens = 4096

// New creates a provider by name
func New(name string, cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", name)
	}

	switch name {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

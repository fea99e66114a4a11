// Package llm wraps generative text model APIs behind a single Completer
// interface used by the model-based extraction strategy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoProvider is returned when no model provider is configured.
var ErrNoProvider = errors.New("no model provider configured")

// Completer sends one system/user prompt pair and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	Provider    string // "anthropic", "openai" or "" for none
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxTokens:  8192,
		MaxRetries: 2,
		Timeout:    120 * time.Second,
	}
}

// New builds the Completer named by cfg.Provider. An empty provider yields
// ErrNoProvider so callers can leave the model strategy out of the cascade.
func New(cfg ProviderConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, ErrNoProvider
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

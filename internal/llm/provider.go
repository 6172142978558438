// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package llm provides a provider-agnostic gateway to hosted LLM APIs.
// A Provider is selected once at construction via a factory keyed by
// configuration; calls are bounded by an HTTP timeout and are never retried
// here — retry policy belongs to the caller.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/errors"
)

// Provider generates text from a prompt using a hosted model. Implementations
// adapt the call to their respective provider API.
type Provider interface {
	// GenerateSQL sends the prompt and returns the raw model output.
	// The output typically contains a fenced ```sql block; extraction and
	// validation happen downstream.
	GenerateSQL(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier for display and logging.
	Name() string
}

// Config carries everything needed to construct a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// New selects and constructs a provider from configuration. Unknown
// providers and missing API keys are configuration errors.
func New(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New(errors.Configuration,
			fmt.Sprintf("missing API key for provider %q (set %s)", cfg.Provider, apiKeyHint(cfg.Provider)))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	switch cfg.Provider {
	case config.ProviderGroq:
		return newChatProvider(cfg, "https://api.groq.com/openai/v1/chat/completions"), nil
	case config.ProviderOpenAI:
		return newChatProvider(cfg, "https://api.openai.com/v1/chat/completions"), nil
	case config.ProviderDeepSeek:
		return newChatProvider(cfg, "https://api.deepseek.com/v1/chat/completions"), nil
	case config.ProviderGemini:
		return newGemini(cfg), nil
	default:
		return nil, errors.New(errors.Configuration, fmt.Sprintf("unknown llm provider %q", cfg.Provider))
	}
}

func apiKeyHint(provider string) string {
	switch provider {
	case config.ProviderGroq:
		return "GROQ_API_KEY"
	case config.ProviderGemini:
		return "GEMINI_API_KEY"
	case config.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case config.ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	}
	return "the provider API key"
}

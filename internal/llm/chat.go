// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sqlagent/cli/internal/errors"
)

// chatProvider speaks the OpenAI-style chat-completions protocol shared by
// Groq, OpenAI, and DeepSeek; only the endpoint differs.
type chatProvider struct {
	name        string
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newChatProvider(cfg Config, endpoint string) *chatProvider {
	return &chatProvider{
		name:        cfg.Provider,
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *chatProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateSQL posts the prompt as a single user message and returns the
// first choice's content.
func (p *chatProvider) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, "encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, "building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, p.name+" request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, "reading response", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Error bodies are JSON on API errors but may be HTML from an
		// intermediary; decode best-effort and keep the status either way.
		msg := http.StatusText(resp.StatusCode)
		var out chatResponse
		if err := json.Unmarshal(data, &out); err == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", errors.New(errors.LLMProvider,
			fmt.Sprintf("%s returned %d: %s", p.name, resp.StatusCode, msg))
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.Wrap(errors.LLMProvider, "malformed response", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New(errors.LLMProvider, p.name+" returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

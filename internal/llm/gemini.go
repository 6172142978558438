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
	"strings"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/errors"
)

// geminiProvider calls the Google Generative Language generateContent API.
// The API key travels in a header, not the URL, so it never appears in
// error strings or logs.
type geminiProvider struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newGemini(cfg Config) *geminiProvider {
	return &geminiProvider{
		baseURL:     "https://generativelanguage.googleapis.com/v1beta",
		apiKey:      cfg.APIKey,
		model:       strings.TrimPrefix(cfg.Model, "models/"),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *geminiProvider) Name() string { return config.ProviderGemini }

type geminiRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *geminiProvider) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	var reqBody geminiRequest
	reqBody.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: prompt}}
	reqBody.GenerationConfig.Temperature = p.temperature
	reqBody.GenerationConfig.MaxOutputTokens = p.maxTokens

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, "encoding request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, "building request", err)
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.LLMProvider, "gemini request failed", err)
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
		var out geminiResponse
		if err := json.Unmarshal(data, &out); err == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", errors.New(errors.LLMProvider,
			fmt.Sprintf("gemini returned %d: %s", resp.StatusCode, msg))
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", errors.Wrap(errors.LLMProvider, "malformed response", err)
	}
	if len(out.Candidates) == 0 {
		return "", errors.New(errors.LLMProvider, "gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

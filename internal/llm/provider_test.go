// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlagent/cli/internal/errors"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{"groq", "groq"},
		{"openai", "openai"},
		{"deepseek", "deepseek"},
		{"gemini", "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(Config{Provider: tt.provider, Model: "m", APIKey: "k"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestNewRejectsMissingKey(t *testing.T) {
	_, err := New(Config{Provider: "groq", Model: "m"})
	require.Error(t, err)
	assert.Equal(t, errors.Configuration, errors.KindOf(err))
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "skynet", Model: "m", APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, errors.Configuration, errors.KindOf(err))
}

func TestChatProviderGenerateSQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"` + "```sql\\nSELECT 1\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	p := newChatProvider(Config{
		Provider: "groq", Model: "m", APIKey: "test-key",
		MaxTokens: 64, Temperature: 0.3, Timeout: 5 * time.Second,
	}, srv.URL)

	out, err := p.GenerateSQL(context.Background(), "question")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT 1")
}

func TestChatProviderAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	p := newChatProvider(Config{Provider: "openai", Model: "m", APIKey: "bad", Timeout: 5 * time.Second}, srv.URL)

	_, err := p.GenerateSQL(context.Background(), "question")
	require.Error(t, err)
	assert.Equal(t, errors.LLMProvider, errors.KindOf(err))
	assert.Contains(t, err.Error(), "401")
}

func TestChatProviderNonJSONErrorBody(t *testing.T) {
	// A proxy in front of the API answers with HTML; the status code must
	// still surface instead of a malformed-response error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))
	defer srv.Close()

	p := newChatProvider(Config{Provider: "groq", Model: "m", APIKey: "k", Timeout: 5 * time.Second}, srv.URL)

	_, err := p.GenerateSQL(context.Background(), "question")
	require.Error(t, err)
	assert.Equal(t, errors.LLMProvider, errors.KindOf(err))
	assert.Contains(t, err.Error(), "502")
	assert.NotContains(t, err.Error(), "malformed")
}

func TestChatProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := newChatProvider(Config{Provider: "deepseek", Model: "m", APIKey: "k", Timeout: 5 * time.Second}, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.GenerateSQL(ctx, "question")
	require.Error(t, err)
	assert.Equal(t, errors.LLMProvider, errors.KindOf(err))
}

func TestGeminiGenerateSQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Contains(t, r.URL.Path, "/models/gemini-1.5-flash:generateContent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"SELECT"},{"text":" 1"}]}}]}`))
	}))
	defer srv.Close()

	p := newGemini(Config{Provider: "gemini", Model: "models/gemini-1.5-flash", APIKey: "secret", Timeout: 5 * time.Second})
	p.baseURL = srv.URL

	out, err := p.GenerateSQL(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
}

func TestGeminiNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>overloaded</html>"))
	}))
	defer srv.Close()

	p := newGemini(Config{Provider: "gemini", Model: "m", APIKey: "k", Timeout: 5 * time.Second})
	p.baseURL = srv.URL

	_, err := p.GenerateSQL(context.Background(), "question")
	require.Error(t, err)
	assert.Equal(t, errors.LLMProvider, errors.KindOf(err))
	assert.Contains(t, err.Error(), "503")
	assert.NotContains(t, err.Error(), "malformed")
}

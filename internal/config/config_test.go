// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	// Missing file still yields a usable config with defaults.
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderGroq, cfg.LLM.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.Query.MaxRows)
	assert.Equal(t, 30, cfg.Query.TimeoutSeconds)
	assert.Equal(t, 60, cfg.Query.LLMTimeoutSeconds)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  port: 5433
  dbname: sales
  user: analyst
  require_ssl: true
llm:
  provider: openai
  model: gpt-4o
query:
  max_rows: 100
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "sales", cfg.Database.DBName)
	assert.True(t, cfg.Database.RequireSSL)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.APIKeyEnvVar())
	assert.Equal(t, 100, cfg.Query.MaxRows)
	// Unset values still get defaults.
	assert.Equal(t, 30, cfg.Query.TimeoutSeconds)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: skynet\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestResolveAPIKey(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: deepseek\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	t.Setenv("DEEPSEEK_API_KEY", "  sk-test-key ")
	assert.Equal(t, "sk-test-key", cfg.ResolveAPIKey())
}

func TestDSNFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@h:5432/d")
	assert.Equal(t, "postgres://u:p@h:5432/d", DSNFromEnv())
}

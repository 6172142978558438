// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads CLI configuration from a YAML file in the XDG config
// dir. Only non-secret settings live in the file; the database password and
// LLM API keys are resolved from environment variables (after a best-effort
// .env load) or the OS keychain, never from the config file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	agenterrors "sqlagent/cli/internal/errors"
	"sqlagent/cli/internal/xdg"
)

// Providers supported by the LLM gateway.
const (
	ProviderGroq     = "groq"
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

// Config holds all non-sensitive tool settings.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Query    QueryConfig    `yaml:"query"`
}

// DatabaseConfig holds database connection settings. Credentials are not
// stored here; they come from DATABASE_URL, PGPASSWORD or the OS keychain.
type DatabaseConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	DBName     string `yaml:"dbname"`
	User       string `yaml:"user"`
	RequireSSL bool   `yaml:"require_ssl"`
}

// LLMConfig holds LLM provider settings. The API key is resolved from the
// environment at runtime and never serialized.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	// MaxRows caps the number of rows any generated query may return.
	MaxRows int `yaml:"max_rows"`
	// TimeoutSeconds bounds database statement execution.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// LLMTimeoutSeconds bounds each LLM provider call independently.
	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds"`
}

// defaultModels maps each provider to the model used when the config file
// does not name one.
var defaultModels = map[string]string{
	ProviderGroq:     "llama-3.3-70b-versatile",
	ProviderGemini:   "gemini-1.5-flash",
	ProviderOpenAI:   "gpt-4o",
	ProviderDeepSeek: "deepseek-chat",
}

// apiKeyEnv maps each provider to the environment variable carrying its key.
var apiKeyEnv = map[string]string{
	ProviderGroq:     "GROQ_API_KEY",
	ProviderGemini:   "GEMINI_API_KEY",
	ProviderOpenAI:   "OPENAI_API_KEY",
	ProviderDeepSeek: "DEEPSEEK_API_KEY",
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from path. An empty path means the default
// location; a missing file returns defaults. A .env file in the working
// directory is loaded best-effort before anything else so that credential
// environment variables are visible.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env") // optional

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	c := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, agenterrors.Wrap(agenterrors.Configuration, "reading config file", err)
		}
	} else if err := yaml.Unmarshal(data, c); err != nil {
		return nil, agenterrors.Wrap(agenterrors.Configuration, "parsing config file", err)
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderGroq
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModels[c.LLM.Provider]
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.Query.MaxRows == 0 {
		c.Query.MaxRows = 500
	}
	if c.Query.TimeoutSeconds == 0 {
		c.Query.TimeoutSeconds = 30
	}
	if c.Query.LLMTimeoutSeconds == 0 {
		c.Query.LLMTimeoutSeconds = 60
	}
}

func (c *Config) validate() error {
	if _, ok := apiKeyEnv[c.LLM.Provider]; !ok {
		return agenterrors.New(agenterrors.Configuration,
			fmt.Sprintf("unknown llm provider %q (supported: groq, gemini, openai, deepseek)", c.LLM.Provider))
	}
	return nil
}

// APIKeyEnvVar returns the environment variable name that carries the API
// key for the configured provider.
func (c *Config) APIKeyEnvVar() string {
	return apiKeyEnv[c.LLM.Provider]
}

// ResolveAPIKey returns the provider API key from the environment, or an
// empty string when unset. Callers may fall back to the OS keychain.
func (c *Config) ResolveAPIKey() string {
	return strings.TrimSpace(os.Getenv(c.APIKeyEnvVar()))
}

// DSNFromEnv returns a DSN taken from the DATABASE_URL environment
// variable, or an empty string when unset. A full DSN from the environment
// always wins over the structured database settings.
func DSNFromEnv() string {
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

// PasswordFromEnv returns the database password from PGPASSWORD, or an
// empty string when unset.
func PasswordFromEnv() string {
	return os.Getenv("PGPASSWORD")
}

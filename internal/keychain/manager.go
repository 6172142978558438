// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe access to the OS
// credential store. It holds the two secrets the tool needs across runs,
// the database DSN and the LLM provider API keys, so neither ever lands in
// the config file or shell history.
package keychain

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"

	"sqlagent/cli/internal/xdg"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "sqlagent"

// Keys used for storing secrets in the OS keychain.
const (
	KeyDBDSN = "db_dsn"

	apiKeyPrefix = "api_key_"
)

// APIKeyKey returns the keychain key holding the API key for a provider.
func APIKeyKey(provider string) string {
	return apiKeyPrefix + provider
}

var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// Manager provides thread-safe operations on the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager opens the OS keyring. Native backends are preferred; an
// encrypted file under the config dir is the last resort so headless hosts
// still work.
func NewManager() (*Manager, error) {
	cfg := keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
		KeychainTrustApplication: true,
	}
	if dir, err := xdg.ConfigDir(); err == nil {
		cfg.FileDir = filepath.Join(dir, "keyring")
		cfg.FilePasswordFunc = keyring.TerminalPrompt
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// GetManager returns the global keychain manager, creating it on first
// call. A failed initialization is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}
	return globalManager, nil
}

// IsNotFound reports whether err means the key simply is not stored.
func IsNotFound(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound)
}

// SaveDSN stores the database DSN in the keychain.
func (m *Manager) SaveDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: KeyDBDSN, Data: []byte(dsn)})
}

// LoadDSN retrieves the database DSN, or "" when none is stored.
func (m *Manager) LoadDSN() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(KeyDBDSN)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return string(it.Data), nil
}

// SaveAPIKey stores the API key for a provider.
func (m *Manager) SaveAPIKey(provider, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: APIKeyKey(provider), Data: []byte(key)})
}

// LoadAPIKey retrieves the API key for a provider, or "" when none is
// stored.
func (m *Manager) LoadAPIKey(provider string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(APIKeyKey(provider))
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return string(it.Data), nil
}

// ClearDSN removes the stored DSN from the keychain.
func (m *Manager) ClearDSN() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.ring.Remove(KeyDBDSN)
	return nil
}

// ClearAPIKey removes the stored API key for a provider.
func (m *Manager) ClearAPIKey(provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.ring.Remove(APIKeyKey(provider))
	return nil
}

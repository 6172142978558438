// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"os"
	"time"

	"github.com/pterm/pterm"

	"sqlagent/cli/internal/agent"
	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/keychain"
	"sqlagent/cli/internal/logging"
)

// openSession loads configuration, resolves credentials and connects a
// pipeline session. Secrets come from the environment first, then the OS
// keychain; keychain unavailability is not fatal as long as the
// environment provides what is needed.
func openSession(ctx context.Context) (*agent.Agent, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	var opts agent.Options
	if config.DSNFromEnv() == "" {
		if km, err := keychain.GetManager(); err == nil {
			opts.DSN, _ = km.LoadDSN()
		}
	}
	if cfg.ResolveAPIKey() == "" {
		if km, err := keychain.GetManager(); err == nil {
			opts.APIKey, _ = km.LoadAPIKey(cfg.LLM.Provider)
		}
	}

	stopSpinner := startInlineSpinner(os.Stderr, "connecting and reflecting schema", spinnerFrames, 100*time.Millisecond)
	a, err := agent.New(ctx, cfg, opts)
	stopSpinner()
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

// presentFailure prints a per-request failure without terminating the
// session.
func presentFailure(res *agent.QueryResult) {
	pterm.Println(pterm.NewStyle(pterm.FgRed).Sprint("✗ ") +
		pterm.Sprintf("%s: %s", res.ErrorKind, logging.Mask(res.Error)))
	if res.SQL != "" {
		pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint("  generated SQL: " + res.SQL))
	}
}

// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"context"
	"time"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/db"
	"sqlagent/cli/internal/dsn"
	"sqlagent/cli/internal/errors"
)

// QueryResult is the envelope every question produces, successful or not.
// Rows preserve result-set column order via the Columns slice; the maps key
// by column name for convenient access.
type QueryResult struct {
	Success  bool             `json:"success"`
	Question string           `json:"question"`
	SQL      string           `json:"query"`
	Params   map[string]any   `json:"params,omitempty"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
	Elapsed  time.Duration    `json:"elapsed_ns"`
	// ErrorKind and Error are set only when Success is false.
	ErrorKind errors.Kind `json:"error_kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func failed(question, sql string, params map[string]any, err error, elapsed time.Duration) *QueryResult {
	return &QueryResult{
		Question:  question,
		SQL:       sql,
		Params:    params,
		Elapsed:   elapsed,
		ErrorKind: errors.KindOf(err),
		Error:     err.Error(),
	}
}

// resolveDSN picks the connection string for a session. Precedence: the
// caller-supplied DSN (keychain), then DATABASE_URL, then the structured
// database settings combined with PGPASSWORD.
func resolveDSN(cfg *config.Config, opts Options) (string, error) {
	if opts.DSN != "" {
		return dsn.Parse(opts.DSN)
	}
	if env := config.DSNFromEnv(); env != "" {
		return dsn.Parse(env)
	}

	d := cfg.Database
	if d.Host == "" || d.DBName == "" || d.User == "" {
		return "", errors.New(errors.Configuration,
			"no database configured: set DATABASE_URL, run 'sqlagent init', or fill the database section of the config file")
	}
	return dsn.Build(d.Host, d.Port, d.DBName, d.User, config.PasswordFromEnv(), d.RequireSSL)
}

// Ping verifies the session's database connection is still alive.
func (a *Agent) Ping(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

var _ db.Querier = (*db.Pool)(nil)

// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package agent orchestrates the natural-language-to-SQL pipeline: schema
// snapshot, prompt assembly, LLM generation, validation, parameter
// extraction and execution. Per-request failures fold into the result
// envelope; only startup problems (bad config, unreachable database,
// unreadable schema) surface as errors.
package agent

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/db"
	"sqlagent/cli/internal/errors"
	"sqlagent/cli/internal/llm"
	"sqlagent/cli/internal/logging"
	"sqlagent/cli/internal/prompt"
	"sqlagent/cli/internal/schema"
	"sqlagent/cli/internal/sqlcheck"
)

// Options carries the credentials resolved by the caller. Empty fields fall
// back to the environment (DATABASE_URL, PGPASSWORD, provider key vars).
type Options struct {
	DSN    string
	APIKey string
}

// Agent is a connected session: one database pool, one reflected schema,
// one LLM provider. Safe for concurrent ProcessNaturalLanguageQuery calls.
type Agent struct {
	cfg       *config.Config
	pool      *db.Pool
	q         db.Querier
	reflector *schema.Reflector
	provider  llm.Provider
	builder   *prompt.Builder
	validator *sqlcheck.Validator
	log       *logging.QueryLog
}

// New connects to the database, reflects the schema and constructs the LLM
// provider. Any failure here is fatal to the session.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Agent, error) {
	dsnStr, err := resolveDSN(cfg, opts)
	if err != nil {
		return nil, err
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = cfg.ResolveAPIKey()
	}
	provider, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      apiKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.Query.LLMTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, dsnStr)
	if err != nil {
		return nil, err
	}

	a := newAgent(cfg, pool, provider)
	a.pool = pool

	if _, err := a.reflector.Snapshot(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	a.log, _ = logging.OpenQueryLog() // best effort; nil-safe
	return a, nil
}

// newAgent wires the pipeline around an arbitrary querier and provider.
func newAgent(cfg *config.Config, q db.Querier, provider llm.Provider) *Agent {
	return &Agent{
		cfg:       cfg,
		q:         q,
		reflector: schema.NewReflector(q),
		provider:  provider,
		builder:   prompt.NewBuilder(),
		validator: sqlcheck.New(cfg.Query.MaxRows),
	}
}

// ProcessNaturalLanguageQuery runs the full pipeline for one question. It
// never returns an error; failures come back as an unsuccessful QueryResult
// so an interactive session can keep going.
func (a *Agent) ProcessNaturalLanguageQuery(ctx context.Context, question string) *QueryResult {
	start := time.Now()

	snap, err := a.reflector.Snapshot(ctx)
	if err != nil {
		return a.finish(failed(question, "", nil, err, time.Since(start)))
	}

	sqlText, err := a.generateSQL(ctx, question, snap)
	if err != nil {
		return a.finish(failed(question, "", nil, err, time.Since(start)))
	}

	params, err := a.extractParams(ctx, sqlText, question, snap)
	if err != nil {
		return a.finish(failed(question, sqlText, nil, err, time.Since(start)))
	}

	gq, err := a.validator.Validate(sqlText, params)
	if err != nil {
		return a.finish(failed(question, sqlText, params, err, time.Since(start)))
	}

	timeout := time.Duration(a.cfg.Query.TimeoutSeconds) * time.Second
	cols, rows, err := runQuery(ctx, a.q, gq, a.cfg.Query.MaxRows, timeout)
	if err != nil {
		return a.finish(failed(question, gq.SQL, gq.Params, err, time.Since(start)))
	}

	return a.finish(&QueryResult{
		Success:  true,
		Question: question,
		SQL:      gq.SQL,
		Params:   gq.Params,
		Columns:  cols,
		Rows:     rows,
		RowCount: len(rows),
		Elapsed:  time.Since(start),
	})
}

// generateSQL asks the model for a statement and unwraps the ```sql fence.
func (a *Agent) generateSQL(ctx context.Context, question string, snap *schema.Snapshot) (string, error) {
	resp, err := a.provider.GenerateSQL(ctx, a.builder.SQLPrompt(question, snap))
	if err != nil {
		return "", err
	}
	return sqlcheck.ExtractSQL(resp)
}

// extractParams runs the second model round trip that maps the statement's
// :named placeholders to values from the question. Statements without
// placeholders skip the call entirely.
func (a *Agent) extractParams(ctx context.Context, sqlText, question string, snap *schema.Snapshot) (map[string]any, error) {
	if len(sqlcheck.Placeholders(sqlText)) == 0 {
		return nil, nil
	}

	resp, err := a.provider.GenerateSQL(ctx, a.builder.ParamPrompt(sqlText, question, snap))
	if err != nil {
		return nil, err
	}
	raw, err := sqlcheck.ExtractJSON(resp)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, errors.Wrap(errors.QueryValidation, "parameter extraction returned invalid JSON", err)
	}
	return normalizeParams(params), nil
}

// normalizeParams converts whole-number JSON floats to int64 so integer
// columns bind with an integer wire type.
func normalizeParams(params map[string]any) map[string]any {
	for k, v := range params {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			params[k] = int64(f)
		}
	}
	return params
}

// finish records the result to the query log before returning it.
func (a *Agent) finish(r *QueryResult) *QueryResult {
	a.log.Record(r.SQL, r.Elapsed, r.Success, r.Error)
	return r
}

// RefreshSchema rescans the database schema, replacing the cached snapshot.
func (a *Agent) RefreshSchema(ctx context.Context) (*schema.Snapshot, error) {
	return a.reflector.Refresh(ctx)
}

// Snapshot returns the cached schema snapshot, or nil before reflection.
func (a *Agent) Snapshot() *schema.Snapshot {
	return a.reflector.Cached()
}

// Provider returns the active LLM provider name.
func (a *Agent) Provider() string {
	return a.provider.Name()
}

// Close releases the connection pool and the query log.
func (a *Agent) Close() {
	if a.log != nil {
		_ = a.log.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

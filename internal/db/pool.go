// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package db owns the pooled PostgreSQL connection shared by the pipeline.
// Checkout and checkin of connections is handled by pgxpool; this package
// adds ping-on-connect verification and is the single place the DSN is
// turned into live connectivity.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sqlagent/cli/internal/errors"
)

// connectTimeout bounds the initial pool creation and verification ping.
const connectTimeout = 5 * time.Second

// Querier is the read surface the executor and reflector need. It is
// satisfied by *Pool and by *pgxpool.Pool, and lets tests substitute fakes.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Pool wraps a pgx connection pool for the lifetime of a session.
type Pool struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool from a normalized DSN and verifies
// connectivity with a ping before returning. Failure here is session-fatal.
func Connect(ctx context.Context, dsn string) (*Pool, error) {
	ctxPing, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctxPing, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.Configuration, "invalid connection configuration", err)
	}
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, errors.Wrap(errors.SchemaReflection, "database unreachable", err)
	}
	return &Pool{pool: pool}, nil
}

// Query runs a statement on a pooled connection. The connection is checked
// out for the duration of the call and released when the returned rows are
// closed, on every exit path.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.pool.Query(ctx, sql, args...)
}

// Ping verifies the pool can still reach the database.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}

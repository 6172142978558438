// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dbtest provides in-memory fakes of the pgx query surface so
// pipeline components can be tested without a live database.
package dbtest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Rows is a canned pgx.Rows implementation backed by a column list and a
// slice of row values.
type Rows struct {
	Cols    []string
	Data    [][]any
	idx     int
	closed  bool
	scanErr error
}

// NewRows builds a Rows fake from columns and row values.
func NewRows(cols []string, data [][]any) *Rows {
	return &Rows{Cols: cols, Data: data}
}

func (r *Rows) Close()     { r.closed = true }
func (r *Rows) Err() error { return nil }
func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.Data)))
}
func (r *Rows) Conn() *pgx.Conn     { return nil }
func (r *Rows) RawValues() [][]byte { return nil }

func (r *Rows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.Cols))
	for i, c := range r.Cols {
		fds[i].Name = c
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.closed || r.idx >= len(r.Data) {
		return false
	}
	r.idx++
	return true
}

// Values returns the current row.
func (r *Rows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.Data) {
		return nil, fmt.Errorf("no current row")
	}
	return r.Data[r.idx-1], nil
}

// Scan copies current row values into the destination pointers.
func (r *Rows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, val any) error {
	switch d := dest.(type) {
	case *string:
		v, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		*d = v
	case *bool:
		v, ok := val.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", val)
		}
		*d = v
	case *int:
		switch v := val.(type) {
		case int:
			*d = v
		case int64:
			*d = int(v)
		default:
			return fmt.Errorf("expected int, got %T", val)
		}
	case *int64:
		switch v := val.(type) {
		case int:
			*d = int64(v)
		case int64:
			*d = v
		default:
			return fmt.Errorf("expected int64, got %T", val)
		}
	case *float64:
		v, ok := val.(float64)
		if !ok {
			return fmt.Errorf("expected float64, got %T", val)
		}
		*d = v
	case *time.Time:
		v, ok := val.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", val)
		}
		*d = v
	case *any:
		*d = val
	default:
		return fmt.Errorf("unsupported destination type %T", dest)
	}
	return nil
}

// QueryFunc adapts a function to the db.Querier interface.
type QueryFunc func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

func (f QueryFunc) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f(ctx, sql, args...)
}

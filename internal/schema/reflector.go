// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"context"
	"sync"
	"time"

	"sqlagent/cli/internal/db"
	"sqlagent/cli/internal/errors"
)

// reflectTimeout bounds a full schema scan. First-run reflection on large
// databases is documented to take up to a minute.
const reflectTimeout = 90 * time.Second

// Reflector introspects the database schema and caches the result for the
// life of the session. A cache miss triggers a full re-scan.
type Reflector struct {
	q    db.Querier
	mu   sync.RWMutex
	snap *Snapshot
}

// NewReflector creates a Reflector over the given connection.
func NewReflector(q db.Querier) *Reflector {
	return &Reflector{q: q}
}

// Snapshot returns the cached schema snapshot, reflecting on first use.
func (r *Reflector) Snapshot(ctx context.Context) (*Snapshot, error) {
	r.mu.RLock()
	snap := r.snap
	r.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return r.Refresh(ctx)
}

// Refresh discards the cache and performs a full schema scan.
func (r *Reflector) Refresh(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, reflectTimeout)
	defer cancel()

	snap, err := r.reflect(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return snap, nil
}

// Cached returns the snapshot without triggering reflection, or nil when
// none has been built yet.
func (r *Reflector) Cached() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

func (r *Reflector) reflect(ctx context.Context) (*Snapshot, error) {
	ordered, tables, err := r.loadTables(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.SchemaReflection, "listing tables", err)
	}
	if len(ordered) == 0 {
		return nil, errors.New(errors.SchemaReflection, "no tables visible to the configured user")
	}
	if err := r.loadColumns(ctx, tables); err != nil {
		return nil, errors.Wrap(errors.SchemaReflection, "loading columns", err)
	}
	fks, err := r.loadForeignKeys(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.SchemaReflection, "loading foreign keys", err)
	}

	// Table order follows the introspection query (schema, name) so the
	// snapshot, and therefore the prompt, is deterministic.
	snap := &Snapshot{ForeignKeys: fks, ReflectedAt: time.Now()}
	for _, t := range ordered {
		snap.Tables = append(snap.Tables, *t)
	}
	return snap, nil
}

// loadTables enumerates base tables in all non-system schemas, returning
// them in query order alongside a lookup map.
func (r *Reflector) loadTables(ctx context.Context) ([]*Table, map[string]*Table, error) {
	const q = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		  AND table_type = 'BASE TABLE'
		ORDER BY table_schema, table_name`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var ordered []*Table
	tables := make(map[string]*Table)
	for rows.Next() {
		var schemaName, tableName string
		if err := rows.Scan(&schemaName, &tableName); err != nil {
			return nil, nil, err
		}
		t := &Table{Schema: schemaName, Name: tableName}
		ordered = append(ordered, t)
		tables[t.QualifiedName()] = t
	}
	return ordered, tables, rows.Err()
}

// loadColumns fills in column definitions and primary-key roles for every
// table in a single pass over information_schema.
func (r *Reflector) loadColumns(ctx context.Context, tables map[string]*Table) error {
	const q = `
		SELECT
			c.table_schema,
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			pk.column_name IS NOT NULL
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT tc.table_schema, tc.table_name, kc.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kc
				ON tc.constraint_name = kc.constraint_name
				AND tc.table_schema = kc.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
		) pk ON pk.table_schema = c.table_schema
			AND pk.table_name = c.table_name
			AND pk.column_name = c.column_name
		WHERE c.table_schema NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
		ORDER BY c.table_schema, c.table_name, c.ordinal_position`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var schemaName, tableName string
		var col Column
		if err := rows.Scan(&schemaName, &tableName, &col.Name, &col.DataType, &col.Nullable, &col.PrimaryKey); err != nil {
			return err
		}
		key := (&Table{Schema: schemaName, Name: tableName}).QualifiedName()
		t, ok := tables[key]
		if !ok {
			continue // view or table filtered out of the listing
		}
		t.Columns = append(t.Columns, col)
		if col.PrimaryKey {
			t.PrimaryKey = append(t.PrimaryKey, col.Name)
		}
	}
	return rows.Err()
}

// loadForeignKeys collects column-level foreign-key relationships.
func (r *Reflector) loadForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	const q = `
		SELECT
			tc.table_schema,
			tc.table_name,
			kc.column_name,
			ccu.table_schema,
			ccu.table_name,
			ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kc
			ON tc.constraint_name = kc.constraint_name
			AND tc.table_schema = kc.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_schema, tc.table_name, kc.ordinal_position`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var srcSchema, srcTable, srcCol, dstSchema, dstTable, dstCol string
		if err := rows.Scan(&srcSchema, &srcTable, &srcCol, &dstSchema, &dstTable, &dstCol); err != nil {
			return nil, err
		}
		fks = append(fks, ForeignKey{
			Table:     (&Table{Schema: srcSchema, Name: srcTable}).QualifiedName(),
			Column:    srcCol,
			RefTable:  (&Table{Schema: dstSchema, Name: dstTable}).QualifiedName(),
			RefColumn: dstCol,
		})
	}
	return fks, rows.Err()
}

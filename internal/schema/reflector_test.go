// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlagent/cli/internal/db/dbtest"
)

// fixtureQuerier serves canned introspection results for a two-table schema:
// users(id, name, email, created_at) and orders(id, user_id, total) with
// orders.user_id → users.id.
func fixtureQuerier(t *testing.T) (dbtest.QueryFunc, *int) {
	t.Helper()
	calls := new(int)
	return func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		*calls++
		switch {
		case strings.Contains(sql, "table_type = 'BASE TABLE'"):
			return dbtest.NewRows(
				[]string{"table_schema", "table_name"},
				[][]any{
					{"public", "orders"},
					{"public", "users"},
				}), nil
		case strings.Contains(sql, "constraint_type = 'FOREIGN KEY'"):
			return dbtest.NewRows(
				[]string{"table_schema", "table_name", "column_name", "ref_schema", "ref_table", "ref_column"},
				[][]any{
					{"public", "orders", "user_id", "public", "users", "id"},
				}), nil
		default: // columns
			return dbtest.NewRows(
				[]string{"table_schema", "table_name", "column_name", "data_type", "nullable", "pk"},
				[][]any{
					{"public", "orders", "id", "integer", false, true},
					{"public", "orders", "user_id", "integer", false, false},
					{"public", "orders", "total", "numeric", true, false},
					{"public", "users", "id", "integer", false, true},
					{"public", "users", "name", "text", false, false},
					{"public", "users", "email", "text", true, false},
					{"public", "users", "created_at", "timestamp without time zone", false, false},
				}), nil
		}
	}, calls
}

func TestReflectorSnapshot(t *testing.T) {
	q, _ := fixtureQuerier(t)
	r := NewReflector(q)

	snap, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Empty())
	assert.Len(t, snap.Tables, 2)

	users, ok := snap.Table("users")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "email", "created_at"}, users.ColumnNames())
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	assert.True(t, users.Columns[2].Nullable)

	require.Len(t, snap.ForeignKeys, 1)
	assert.Equal(t, "orders", snap.ForeignKeys[0].Table)
	assert.Equal(t, "users", snap.ForeignKeys[0].RefTable)
}

func TestReflectorCachesSnapshot(t *testing.T) {
	q, calls := fixtureQuerier(t)
	r := NewReflector(q)

	_, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	after := *calls

	// Second call must be served from cache.
	_, err = r.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, after, *calls)

	// Refresh forces a full re-scan.
	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Greater(t, *calls, after)
}

func TestReflectorRejectsEmptySchema(t *testing.T) {
	q := dbtest.QueryFunc(func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		return dbtest.NewRows([]string{"table_schema", "table_name"}, nil), nil
	})
	r := NewReflector(q)

	_, err := r.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables")
}

func TestSnapshotRelatedTables(t *testing.T) {
	snap := &Snapshot{
		Tables: []Table{{Name: "users"}, {Name: "orders"}, {Name: "products"}},
		ForeignKeys: []ForeignKey{
			{Table: "orders", Column: "user_id", RefTable: "users", RefColumn: "id"},
		},
	}
	got := snap.RelatedTables(map[string]bool{"orders": true})
	assert.True(t, got["users"])
	assert.True(t, got["orders"])
	assert.False(t, got["products"])
}

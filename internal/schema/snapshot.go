// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package schema reflects the structure of the connected PostgreSQL
// database into an immutable snapshot of tables, columns, keys, and
// foreign-key relationships. The snapshot is built once per session, cached,
// and shared read-only by the prompt builder; an explicit Refresh triggers a
// full re-scan.
package schema

import (
	"strings"
	"time"
)

// Column describes a single table column.
type Column struct {
	Name       string
	DataType   string
	Nullable   bool
	PrimaryKey bool
}

// Table describes a table visible to the configured user.
type Table struct {
	Schema     string
	Name       string
	Columns    []Column
	PrimaryKey []string
}

// QualifiedName returns the name to use in SQL. Tables in the default
// "public" schema are referred to by bare name, matching how the LLM is
// prompted.
func (t *Table) QualifiedName() string {
	if t.Schema == "" || t.Schema == "public" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey describes one column-level foreign-key relationship.
type ForeignKey struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// Snapshot is a point-in-time view of the database schema. It is never
// mutated after construction.
type Snapshot struct {
	Tables      []Table
	ForeignKeys []ForeignKey
	ReflectedAt time.Time
}

// Table returns the table with the given (optionally schema-qualified)
// name, matching case-insensitively.
func (s *Snapshot) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		t := &s.Tables[i]
		if strings.EqualFold(t.Name, name) || strings.EqualFold(t.QualifiedName(), name) {
			return t, true
		}
	}
	return nil, false
}

// TableNames returns the qualified names of all tables in snapshot order.
func (s *Snapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i := range s.Tables {
		names[i] = s.Tables[i].QualifiedName()
	}
	return names
}

// Empty reports whether the snapshot contains no tables.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Tables) == 0
}

// RelatedTables returns the set of tables connected to the given tables by
// foreign keys, including the inputs themselves. Used to expand relevance
// selections so joinable tables travel together into the prompt.
func (s *Snapshot) RelatedTables(names map[string]bool) map[string]bool {
	out := make(map[string]bool, len(names))
	for n := range names {
		out[n] = true
	}
	for _, fk := range s.ForeignKeys {
		if out[fk.Table] {
			out[fk.RefTable] = true
		} else if out[fk.RefTable] {
			out[fk.Table] = true
		}
	}
	return out
}

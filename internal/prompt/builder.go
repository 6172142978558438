// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package prompt assembles provider-neutral prompts from a schema snapshot
// and a natural-language question. Building a prompt is deterministic and
// side-effect free: table relevance is scored lexically against the
// question (no LLM round-trip), and when the schema text exceeds the
// context budget the least-relevant tables are dropped first. The question
// itself is never truncated.
package prompt

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"sqlagent/cli/internal/schema"
)

// DefaultSchemaCharBudget caps the schema portion of a prompt. Roughly
// 2k tokens at 4 chars/token, leaving headroom for rules and the question
// within common context windows.
const DefaultSchemaCharBudget = 8000

// Builder constructs SQL-generation and parameter-extraction prompts.
type Builder struct {
	// SchemaCharBudget bounds the formatted schema text; tables are trimmed
	// least-relevant first until the text fits.
	SchemaCharBudget int
}

// NewBuilder returns a Builder with the default context budget.
func NewBuilder() *Builder {
	return &Builder{SchemaCharBudget: DefaultSchemaCharBudget}
}

// SQLPrompt builds the prompt that asks the model for a single read-only,
// parameterized PostgreSQL statement answering the question.
func (b *Builder) SQLPrompt(question string, snap *schema.Snapshot) string {
	tables := b.selectTables(question, snap)
	schemaText := formatSchema(tables, snap.ForeignKeys)
	examples := exampleQueries(tables)

	var sb strings.Builder
	sb.WriteString("Database Schema:\n")
	sb.WriteString(schemaText)
	sb.WriteString("\n\nExample Queries:\n")
	sb.WriteString(examples)
	sb.WriteString("\n\nTask: Convert the following natural language request into a single, safe, parameterized SQL query.\n")
	sb.WriteString(`Rules:
1. Use named parameters with :param syntax for every literal value taken from the request
2. Only use tables and columns from the schema above
3. Read-only: a single SELECT statement (WITH ... SELECT is allowed), no modifying commands
4. Add a LIMIT clause
5. Use proper JOIN syntax
6. Use PostgreSQL syntax; for text searches use ILIKE with a :pattern parameter
7. For "today"-style date questions, compare with DATE(column) = CURRENT_DATE
8. Format cleanly with newlines
`)
	sb.WriteString(fmt.Sprintf("\nNatural Language Request: %q\n", question))
	sb.WriteString("Respond ONLY with the SQL query enclosed in ```sql markers.")
	return sb.String()
}

// ParamPrompt builds the follow-up prompt that asks the model to map the
// :named placeholders in sql to values found in the question, returned as a
// JSON object.
func (b *Builder) ParamPrompt(sql, question string, snap *schema.Snapshot) string {
	tables := b.selectTables(question, snap)

	var sb strings.Builder
	sb.WriteString("Database Schema:\n")
	sb.WriteString(formatSchema(tables, snap.ForeignKeys))
	sb.WriteString("\n\nGenerated SQL Query:\n```sql\n")
	sb.WriteString(sql)
	sb.WriteString("\n```\n")
	sb.WriteString(fmt.Sprintf("\nNatural Language Request: %q\n", question))
	sb.WriteString(`
Task: Extract all parameters from the SQL query and find their values in the natural language request.
Parameters in the SQL are prefixed with ':' (e.g., :name, :user_id).
For each parameter:
1. Find the most likely value from the natural language request
2. Convert it to an appropriate JSON type (string, number, boolean)
3. For ILIKE search parameters, include the wildcards (e.g., "%John%")

Example request: "Show me users named John"
Example SQL: SELECT * FROM users WHERE name ILIKE :name_pattern
Extraction: {"name_pattern": "%John%"}

Example request: "Get product with id 123"
Example SQL: SELECT * FROM products WHERE id = :product_id
Extraction: {"product_id": 123}

Return ONLY a valid JSON object with parameter names as keys, enclosed in ` + "```json markers.")
	return sb.String()
}

var wordRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// selectTables ranks tables by lexical overlap with the question, expands
// the selection along foreign keys, and trims least-relevant tables until
// the formatted schema fits the budget. When nothing matches, all tables
// stay in (trimmed only by budget), so the model still sees the schema.
func (b *Builder) selectTables(question string, snap *schema.Snapshot) []schema.Table {
	budget := b.SchemaCharBudget
	if budget <= 0 {
		budget = DefaultSchemaCharBudget
	}

	scores := scoreTables(question, snap)

	matched := make(map[string]bool)
	for name, s := range scores {
		if s > 0 {
			matched[name] = true
		}
	}
	if len(matched) > 0 {
		matched = snap.RelatedTables(matched)
	} else {
		for _, name := range snap.TableNames() {
			matched[name] = true
		}
	}

	// Stable order: score descending, then snapshot order.
	var tables []schema.Table
	for _, t := range snap.Tables {
		if matched[t.QualifiedName()] {
			tables = append(tables, t)
		}
	}
	sort.SliceStable(tables, func(i, j int) bool {
		return scores[tables[i].QualifiedName()] > scores[tables[j].QualifiedName()]
	})

	// Trim least-relevant tables until the schema text fits the budget.
	for len(tables) > 1 && len(formatSchema(tables, snap.ForeignKeys)) > budget {
		tables = tables[:len(tables)-1]
	}
	return tables
}

// scoreTables counts question-token hits against table and column names.
// A table-name hit weighs more than a column hit.
func scoreTables(question string, snap *schema.Snapshot) map[string]int {
	tokens := make(map[string]bool)
	for _, w := range wordRe.FindAllString(strings.ToLower(question), -1) {
		tokens[w] = true
		// naive singularization so "users" matches "user" and vice versa
		tokens[strings.TrimSuffix(w, "s")] = true
	}

	scores := make(map[string]int, len(snap.Tables))
	for i := range snap.Tables {
		t := &snap.Tables[i]
		score := 0
		name := strings.ToLower(t.Name)
		if tokens[name] || tokens[strings.TrimSuffix(name, "s")] {
			score += 3
		}
		for _, c := range t.Columns {
			if tokens[strings.ToLower(c.Name)] {
				score++
			}
		}
		scores[t.QualifiedName()] = score
	}
	return scores
}

// formatSchema renders tables and their foreign keys the way the model is
// expected to read them: one block per table, then a relationship section.
func formatSchema(tables []schema.Table, fks []schema.ForeignKey) string {
	included := make(map[string]bool, len(tables))
	for i := range tables {
		included[tables[i].QualifiedName()] = true
	}

	var sb strings.Builder
	for i := range tables {
		t := &tables[i]
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Table: " + t.QualifiedName() + "\n")
		sb.WriteString("Columns: ")
		for j, c := range t.Columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s (%s)", c.Name, c.DataType))
			if c.PrimaryKey {
				sb.WriteString(" [PK]")
			}
			if !c.Nullable {
				sb.WriteString(" [NOT NULL]")
			}
		}
		sb.WriteString("\n")
		if len(t.PrimaryKey) > 0 {
			sb.WriteString("Primary Key: " + strings.Join(t.PrimaryKey, ", ") + "\n")
		}
	}

	var rel []string
	for _, fk := range fks {
		if included[fk.Table] && included[fk.RefTable] {
			rel = append(rel, fmt.Sprintf("%s.%s -> %s.%s", fk.Table, fk.Column, fk.RefTable, fk.RefColumn))
		}
	}
	if len(rel) > 0 {
		sb.WriteString("\nForeign Key Relationships:\n")
		sb.WriteString(strings.Join(rel, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// exampleQueries renders a couple of schema-derived examples showing the
// expected parameter and pagination style.
func exampleQueries(tables []schema.Table) string {
	if len(tables) == 0 {
		return ""
	}
	var sb strings.Builder

	// A text-search example against the first table with a string-ish column.
	for i := range tables {
		t := &tables[i]
		for _, c := range t.Columns {
			lname := strings.ToLower(c.Name)
			ltype := strings.ToLower(c.DataType)
			if strings.Contains(lname, "name") || strings.Contains(lname, "email") ||
				strings.Contains(ltype, "char") || ltype == "text" {
				sb.WriteString(fmt.Sprintf(
					"-- Finding %s by %s pattern\nSELECT * FROM %s\nWHERE %s ILIKE :search_pattern\nLIMIT 100\n-- Parameter: search_pattern = \"%%example%%\"\n",
					t.QualifiedName(), c.Name, t.QualifiedName(), c.Name))
				break
			}
		}
		if sb.Len() > 0 {
			break
		}
	}

	// A filtered query with parameters against the most relevant table.
	t := &tables[0]
	sb.WriteString(fmt.Sprintf(
		"\n-- Filtered query with parameters\nSELECT * FROM %s\nWHERE created_at > :start_date\nORDER BY created_at DESC\nLIMIT 50\n-- Parameter: start_date = \"2024-01-01\"",
		t.QualifiedName()))
	return sb.String()
}

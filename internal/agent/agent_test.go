// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/db/dbtest"
	"sqlagent/cli/internal/errors"
)

// fakeProvider replays canned responses in order and records the prompts it
// was asked.
type fakeProvider struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeProvider) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.responses) {
		return "", errors.New(errors.LLMProvider, "no canned response left")
	}
	return f.responses[i], nil
}

func (f *fakeProvider) Name() string { return "fake" }

// userQuery captures a statement the executor sent to the database.
type userQuery struct {
	sql  string
	args []any
}

// testQuerier serves schema introspection from fixtures and everything else
// from canned result rows or a canned error, recording executed statements.
type testQuerier struct {
	results  *dbtest.Rows
	queryErr error
	queries  []userQuery
}

func (q *testQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if strings.Contains(sql, "information_schema") {
		return schemaFixture(sql), nil
	}
	q.queries = append(q.queries, userQuery{sql: sql, args: args})
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	if q.results == nil {
		return dbtest.NewRows(nil, nil), nil
	}
	return q.results, nil
}

func schemaFixture(sql string) pgx.Rows {
	switch {
	case strings.Contains(sql, "table_type = 'BASE TABLE'"):
		return dbtest.NewRows(
			[]string{"table_schema", "table_name"},
			[][]any{{"public", "users"}})
	case strings.Contains(sql, "constraint_type = 'FOREIGN KEY'"):
		return dbtest.NewRows(
			[]string{"table_schema", "table_name", "column_name", "ref_schema", "ref_table", "ref_column"}, nil)
	default:
		return dbtest.NewRows(
			[]string{"table_schema", "table_name", "column_name", "data_type", "nullable", "pk"},
			[][]any{
				{"public", "users", "id", "integer", false, true},
				{"public", "users", "name", "text", false, false},
				{"public", "users", "created_at", "timestamp without time zone", false, false},
			})
	}
}

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{Provider: config.ProviderGroq, Model: "m"},
		Query: config.QueryConfig{
			MaxRows:           500,
			TimeoutSeconds:    5,
			LLMTimeoutSeconds: 5,
		},
	}
}

func TestProcessQueryWithParameters(t *testing.T) {
	q := &testQuerier{results: dbtest.NewRows(
		[]string{"id", "name"},
		[][]any{{int64(1), "Vivek"}},
	)}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT id, name FROM users WHERE name ILIKE :name_pattern LIMIT 100\n```",
		"```json\n{\"name_pattern\": \"%Vivek%\"}\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "find users named Vivek")
	require.True(t, res.Success, res.Error)

	assert.Equal(t, "SELECT id, name FROM users WHERE name ILIKE $1 LIMIT 100", res.SQL)
	assert.Equal(t, map[string]any{"name_pattern": "%Vivek%"}, res.Params)
	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, "Vivek", res.Rows[0]["name"])

	// The statement reached the database in positional form.
	require.Len(t, q.queries, 1)
	assert.Equal(t, []any{"%Vivek%"}, q.queries[0].args)

	// Second round trip carried the generated SQL.
	require.Len(t, p.prompts, 2)
	assert.Contains(t, p.prompts[1], ":name_pattern")
}

func TestProcessQuerySkipsParamCallWhenNoPlaceholders(t *testing.T) {
	q := &testQuerier{results: dbtest.NewRows(
		[]string{"count"},
		[][]any{{int64(42)}},
	)}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT count(*) FROM users LIMIT 1\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "how many users are there?")
	require.True(t, res.Success, res.Error)
	assert.Len(t, p.prompts, 1)
	assert.Equal(t, int64(42), res.Rows[0]["count"])
}

func TestProcessQueryRejectsWriteStatement(t *testing.T) {
	q := &testQuerier{}
	p := &fakeProvider{responses: []string{
		"```sql\nDELETE FROM users WHERE id = 1\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "remove user 1")
	require.False(t, res.Success)
	assert.Equal(t, errors.QueryValidation, res.ErrorKind)
	// Nothing reached the database.
	assert.Empty(t, q.queries)
}

func TestProcessQueryProviderFailure(t *testing.T) {
	q := &testQuerier{}
	p := &fakeProvider{err: errors.New(errors.LLMProvider, "groq returned 401: invalid api key")}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "anything")
	require.False(t, res.Success)
	assert.Equal(t, errors.LLMProvider, res.ErrorKind)
	assert.Empty(t, q.queries)
}

func TestProcessQueryBadParamJSON(t *testing.T) {
	q := &testQuerier{}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT * FROM users WHERE id = :id LIMIT 1\n```",
		"```json\nnot json at all\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "get user 1")
	require.False(t, res.Success)
	assert.Equal(t, errors.QueryValidation, res.ErrorKind)
	assert.Empty(t, q.queries)
}

func TestProcessQueryEnforcesRowCap(t *testing.T) {
	q := &testQuerier{results: dbtest.NewRows(
		[]string{"id"},
		[][]any{{int64(1)}, {int64(2)}, {int64(3)}, {int64(4)}, {int64(5)}},
	)}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT id FROM users\n```",
	}}
	cfg := testConfig()
	cfg.Query.MaxRows = 2
	a := newAgent(cfg, q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "all users")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.RowCount)
	// The validator also stamped the cap onto the statement itself.
	assert.Contains(t, res.SQL, "LIMIT 2")
}

func TestProcessQueryIntegerParamBindsAsInteger(t *testing.T) {
	q := &testQuerier{results: dbtest.NewRows([]string{"id"}, [][]any{{int64(7)}})}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT id FROM users WHERE id = :user_id LIMIT 1\n```",
		"```json\n{\"user_id\": 7}\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "get user 7")
	require.True(t, res.Success, res.Error)
	require.Len(t, q.queries, 1)
	// JSON numbers arrive as float64; whole values bind as int64.
	assert.Equal(t, []any{int64(7)}, q.queries[0].args)
}

func TestProcessQueryExecutionFailure(t *testing.T) {
	// The database rejects or times out on an otherwise valid statement.
	q := &testQuerier{queryErr: context.DeadlineExceeded}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT id FROM users LIMIT 10\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "all users")
	require.False(t, res.Success)
	assert.Equal(t, errors.QueryExecution, res.ErrorKind)
	assert.Contains(t, res.Error, "query failed")
	// The statement was attempted exactly once and the SQL is preserved in
	// the envelope for display.
	assert.Len(t, q.queries, 1)
	assert.Equal(t, "SELECT id FROM users LIMIT 10", res.SQL)
}

func TestProcessQueryRegisteredToday(t *testing.T) {
	q := &testQuerier{results: dbtest.NewRows(
		[]string{"id", "name"},
		[][]any{{int64(3), "Ada"}},
	)}
	p := &fakeProvider{responses: []string{
		"```sql\nSELECT id, name FROM users WHERE DATE(created_at) = CURRENT_DATE LIMIT 100\n```",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "which users registered today?")
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.SQL, "DATE(created_at) = CURRENT_DATE")
	assert.Equal(t, 1, res.RowCount)
}

func TestProcessQueryUnanswerableQuestion(t *testing.T) {
	q := &testQuerier{}
	// The model declines instead of producing a fenced statement.
	p := &fakeProvider{responses: []string{
		"I cannot find any table about spaceships in this schema.",
	}}
	a := newAgent(testConfig(), q, p)

	res := a.ProcessNaturalLanguageQuery(context.Background(), "list all spaceships")
	require.False(t, res.Success)
	assert.Equal(t, errors.QueryValidation, res.ErrorKind)
	assert.Empty(t, q.queries)
}

func TestNormalizeParams(t *testing.T) {
	got := normalizeParams(map[string]any{
		"whole":    float64(5),
		"fraction": 2.5,
		"text":     "x",
	})
	assert.Equal(t, int64(5), got["whole"])
	assert.Equal(t, 2.5, got["fraction"])
	assert.Equal(t, "x", got["text"])
}

// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package agent

import (
	"context"
	"time"

	"sqlagent/cli/internal/db"
	"sqlagent/cli/internal/errors"
	"sqlagent/cli/internal/sqlcheck"
)

// runQuery executes a validated statement and materializes the result set.
// Column order comes from the result's field descriptions; the scan stops
// at maxRows even if the statement returns more.
func runQuery(ctx context.Context, q db.Querier, gq *sqlcheck.GeneratedQuery, maxRows int, timeout time.Duration) ([]string, []map[string]any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rows, err := q.Query(ctx, gq.SQL, gq.Args...)
	if err != nil {
		return nil, nil, errors.Wrap(errors.QueryExecution, "query failed", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = string(fd.Name)
	}

	out := make([]map[string]any, 0, 16)
	for rows.Next() {
		if len(out) >= maxRows {
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, errors.Wrap(errors.QueryExecution, "reading row", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if i < len(vals) {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(errors.QueryExecution, "reading result set", err)
	}
	return cols, out, nil
}

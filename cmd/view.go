// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"sqlagent/cli/internal/agent"
)

// renderResult prints a successful query result: the generated statement,
// the bound parameters, the rows as a table and a summary line.
func renderResult(res *agent.QueryResult) {
	pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint(res.SQL))
	if len(res.Params) > 0 {
		pterm.Println(pterm.NewStyle(pterm.FgGray).Sprint("params: " + formatParams(res.Params)))
	}
	pterm.Println()

	if res.RowCount == 0 {
		pterm.Println("(no rows)")
	} else {
		data := pterm.TableData{res.Columns}
		for _, row := range res.Rows {
			line := make([]string, len(res.Columns))
			for i, c := range res.Columns {
				line[i] = formatValue(row[c])
			}
			data = append(data, line)
		}
		_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	}

	pterm.Println()
	pterm.Printf("%d row(s) in %s\n", res.RowCount, res.Elapsed.Round(time.Millisecond))
}

// formatParams renders the bound parameter map compactly for display.
func formatParams(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}

// formatValue renders one cell of the result table.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sqlagent/cli/internal/agent"
	"sqlagent/cli/internal/errors"
	"sqlagent/cli/internal/logging"
)

// shellCmd runs the interactive question loop. One session keeps a single
// connection pool and schema snapshot; per-question failures are printed
// and the loop continues.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive natural-language query shell",
	Long: `The shell command starts an interactive session against the configured
database. Type a question in plain language and sqlagent generates, validates
and runs a read-only SQL statement, then prints the result.

Meta commands:
  \schema    list the reflected tables
  \refresh   rescan the database schema
  exit       leave the shell (also: quit, \q)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, cfg, err := openSession(ctx)
		if err != nil {
			pterm.Println(logging.PresentError("starting session", err))
			return err
		}
		defer a.Close()

		snap := a.Snapshot()
		pterm.Printf("Connected. %d table(s) reflected, provider %s/%s.\n",
			len(snap.Tables), a.Provider(), cfg.LLM.Model)
		pterm.Println("Ask a question in plain language, or type 'exit' to leave.")
		pterm.Println()

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("sql-agent> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				pterm.Println()
				return nil // EOF ends the session
			}
			question := strings.TrimSpace(line)

			switch strings.ToLower(question) {
			case "":
				continue
			case "exit", "quit", `\q`:
				pterm.Println("Bye.")
				return nil
			case `\schema`:
				printSchema(a)
				continue
			case `\refresh`:
				stop := startInlineSpinner(os.Stderr, "rescanning schema", spinnerFrames, 100*time.Millisecond)
				snap, err := a.RefreshSchema(ctx)
				stop()
				if err != nil {
					pterm.Println(logging.PresentError("refreshing schema", err))
					if errors.IsFatal(errors.KindOf(err)) {
						return err
					}
					continue
				}
				pterm.Printf("Schema refreshed: %d table(s).\n", len(snap.Tables))
				continue
			}

			cursor.Hide()
			stop := startInlineSpinner(os.Stderr, "thinking", spinnerFrames, 100*time.Millisecond)
			res := a.ProcessNaturalLanguageQuery(ctx, question)
			stop()
			cursor.Show()

			if !res.Success {
				presentFailure(res)
				if errors.IsFatal(res.ErrorKind) {
					return fmt.Errorf("session ended: %s", res.ErrorKind)
				}
				continue
			}
			renderResult(res)
		}
	},
}

// printSchema lists the reflected tables and their columns.
func printSchema(a *agent.Agent) {
	snap := a.Snapshot()
	if snap == nil || snap.Empty() {
		pterm.Println("(no schema reflected)")
		return
	}
	data := pterm.TableData{{"Table", "Columns", "Primary Key"}}
	for i := range snap.Tables {
		t := &snap.Tables[i]
		data = append(data, []string{
			t.QualifiedName(),
			strings.Join(t.ColumnNames(), ", "),
			strings.Join(t.PrimaryKey, ", "),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

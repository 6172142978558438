// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sqlagent/cli/internal/logging"
)

var queryJSON bool

// queryCmd answers a single question and exits. With --json the full result
// envelope is printed for scripting; otherwise the result renders as a
// table like the shell does.
var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer one natural-language question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.Join(args, " ")

		a, _, err := openSession(ctx)
		if err != nil {
			pterm.Println(logging.PresentError("starting session", err))
			return err
		}
		defer a.Close()

		cursor.Hide()
		stop := startInlineSpinner(os.Stderr, "thinking", spinnerFrames, 100*time.Millisecond)
		res := a.ProcessNaturalLanguageQuery(ctx, question)
		stop()
		cursor.Show()

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("query failed: %s", res.ErrorKind)
			}
			return nil
		}

		if !res.Success {
			presentFailure(res)
			return fmt.Errorf("query failed: %s", res.ErrorKind)
		}
		renderResult(res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the full result envelope as JSON")
}

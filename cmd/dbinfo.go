// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/keychain"
	"sqlagent/cli/internal/logging"
)

// dbinfoCmd displays the configured database connection with the password
// masked, so users can verify which database they are pointed at without
// exposing credentials.
var dbinfoCmd = &cobra.Command{
	Use:   "dbinfo",
	Short: "Show current database connection string",
	Long: `The dbinfo command displays the currently configured database connection
string (DSN) with the password masked for security. This helps verify which
database you're connected to without exposing sensitive credentials.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		dsnStr := config.DSNFromEnv()
		source := "DATABASE_URL environment variable"

		if dsnStr == "" {
			km, err := keychain.GetManager()
			if err != nil {
				pterm.Println("❌ Secure storage is not available on this system")
				pterm.Println("   Set DATABASE_URL instead")
				return err
			}
			dsnStr, err = km.LoadDSN()
			if err != nil {
				return err
			}
			source = "OS keychain"
		}

		if strings.TrimSpace(dsnStr) == "" {
			pterm.Println("⚠️  No database connection configured")
			pterm.Println("   Please run: sqlagent init")
			return nil
		}

		pterm.Println("Using DSN from " + source)
		pterm.Println()
		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("Database Connection")).
			WithLeftPadding(1).
			WithRightPadding(1).
			Println(logging.Mask(dsnStr))
		pterm.Println()
		pterm.Println("To update this connection, run: sqlagent init")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbinfoCmd)
}

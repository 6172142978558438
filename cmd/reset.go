// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"sqlagent/cli/internal/config"
	"sqlagent/cli/internal/keychain"
)

// resetCmd removes stored credentials from the OS keychain. It clears the
// database DSN and the API keys of every supported provider, so a fresh
// 'sqlagent init' starts from a clean slate.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove saved database and LLM credentials",
	Long: `The reset command clears all credentials sqlagent has stored in the OS
keychain: the database connection string and any saved LLM provider API keys.

Credentials supplied through the environment (DATABASE_URL, PGPASSWORD, or
provider key variables) are not touched. Run 'sqlagent init' afterwards to
configure a new connection.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			pterm.Println("❌ Secure storage is not available on this system")
			return err
		}

		_ = km.ClearDSN()
		for _, provider := range []string{
			config.ProviderGroq,
			config.ProviderGemini,
			config.ProviderOpenAI,
			config.ProviderDeepSeek,
		} {
			_ = km.ClearAPIKey(provider)
		}

		pterm.Println("✅ Saved credentials have been removed")
		pterm.Println("   Run 'sqlagent init' to configure a new connection")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

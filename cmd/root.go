// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for the sqlagent tool.
// It implements subcommands for configuring a database connection, running
// natural-language queries one-shot or in an interactive shell, and
// inspecting the reflected schema, using the Cobra CLI framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	showVersion bool
	configPath  string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "sqlagent",
	Short:         "Query PostgreSQL databases in natural language",
	Long:          `sqlagent turns natural-language questions into validated, read-only SQL and runs them against your PostgreSQL database using an LLM provider (groq, gemini, openai or deepseek).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("sqlagent %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the CLI application.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/sqlagent/config.yaml)")
}

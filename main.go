// Package main is the entry point for the sqlagent CLI application.
// It turns natural-language questions into validated, read-only SQL.
package main

import (
	"sqlagent/cli/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "schemacore",
	Short: "Introspect and diff database schemas across Postgres, MySQL, SQLite and MSSQL",
	Long: `schemacore is a dialect-agnostic schema façade: it describes a live
database's schema as a single in-memory representation, diffs two schemas
into an ordered list of migration steps, flags destructive changes, and
renders the steps back into dialect-specific DDL.`,
}

func init() {
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(introspectCmd)
}

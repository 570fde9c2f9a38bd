package main

import (
	"context"
	"fmt"
	"log"

	"github.com/sqldef/schemacore/internal/connector"
	"github.com/sqldef/schemacore/internal/introspect"
	"github.com/spf13/cobra"
)

var introspectSchemas []string

var introspectCmd = &cobra.Command{
	Use:   "introspect <db-url>",
	Short: "Describe a live database's schema and print it as DML text",
	Long: `introspect connects to db-url, describes its schema, and prints the
resulting DML text along with any warnings raised while naming models and
fields (reserved-word renames, @@map carried over, models without a
usable identifier, ...).

This wrapper always introspects fresh (previous_dml = none): reading back
a previously generated DML file is the DML-parser surface §1 places out
of scope, so re-introspection pairing against it is exercised by
internal/introspect's own tests rather than by this CLI.`,
	Args: cobra.ExactArgs(1),
	Run:  runIntrospect,
}

func init() {
	introspectCmd.Flags().StringSliceVar(&introspectSchemas, "schema", nil, "Namespaces/schemas to consider (repeatable); defaults to the dialect's default namespace")
}

func runIntrospect(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	dbURL := args[0]

	conn, err := connector.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	schema, diags, err := conn.DescribeSchema(ctx, introspectSchemas)
	if err != nil {
		log.Fatalf("Failed to describe database: %v", err)
	}
	for _, d := range diags {
		fmt.Printf("-- %s: %s\n", d.Severity, d.Message)
	}

	text, warnings := introspect.Introspect(nil, schema, conn.Dial)
	for _, w := range warnings {
		fmt.Printf("-- %s: %s\n", w.Subject, w.Detail)
	}

	fmt.Print(text)
}

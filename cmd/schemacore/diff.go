package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/sqldef/schemacore/internal/connector"
	"github.com/sqldef/schemacore/pkg/sqlerr"
	"github.com/spf13/cobra"
)

var (
	diffExecute bool
	diffForce   bool
	diffSchemas []string
)

var diffCmd = &cobra.Command{
	Use:   "diff <target-db-url> <desired-db-url>",
	Short: "Diff two databases' schemas and print the migration DDL",
	Long: `diff describes the schema of target-db-url (the database to migrate)
and desired-db-url (the database whose schema is the goal), computes the
steps that take one to the other, and prints the rendered DDL along with
any destructive-change warnings.

With --execute, the DDL is applied to target-db-url instead of only being
printed.

A plan containing an unexecutable destructive step (e.g. adding a
required column without a default to a non-empty table) is refused
unless --force is also given (§7: only unexecutable steps ever abort,
and only when force is not passed).`,
	Args: cobra.ExactArgs(2),
	Run:  runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffExecute, "execute", false, "Apply the migration to target-db-url instead of printing it")
	diffCmd.Flags().BoolVar(&diffForce, "force", false, "Proceed past unexecutable destructive-change annotations")
	diffCmd.Flags().StringSliceVar(&diffSchemas, "schema", nil, "Namespaces/schemas to consider (repeatable); defaults to the dialect's default namespace")
}

func runDiff(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	targetURL, desiredURL := args[0], args[1]

	target, err := connector.Connect(ctx, targetURL)
	if err != nil {
		log.Fatalf("Failed to connect to target database: %v", err)
	}
	defer target.Close()

	desired, err := connector.Connect(ctx, desiredURL)
	if err != nil {
		log.Fatalf("Failed to connect to desired database: %v", err)
	}
	defer desired.Close()

	currentSchema, diags, err := target.DescribeSchema(ctx, diffSchemas)
	if err != nil {
		log.Fatalf("Failed to describe target database: %v", err)
	}
	for _, d := range diags {
		fmt.Printf("-- %s: %s\n", d.Severity, d.Message)
	}

	desiredSchema, diags, err := desired.DescribeSchema(ctx, diffSchemas)
	if err != nil {
		log.Fatalf("Failed to describe desired database: %v", err)
	}
	for _, d := range diags {
		fmt.Printf("-- %s: %s\n", d.Severity, d.Message)
	}

	plan, err := target.Plan(ctx, currentSchema, desiredSchema, diffForce)
	if err != nil {
		var destructive *sqlerr.DestructiveChangeError
		if errors.As(err, &destructive) {
			for _, ann := range plan.Annotations {
				if ann.Severity != 0 {
					fmt.Printf("-- %s: %s\n", ann.Severity, ann.Explanation)
				}
			}
			log.Fatalf("Refusing to plan: %v (pass --force to proceed past unexecutable steps)", destructive)
		}
		log.Fatalf("Failed to compute migration plan: %v", err)
	}

	if plan.DDL == "" {
		fmt.Println("-- Nothing is modified --")
		return
	}

	for _, ann := range plan.Annotations {
		if ann.Severity != 0 { // Safe == 0; anything else is worth a stderr-style note
			fmt.Printf("-- %s: %s\n", ann.Severity, ann.Explanation)
		}
	}

	fmt.Print(plan.DDL)

	if !diffExecute {
		return
	}

	for _, stmt := range strings.Split(plan.DDL, ";\n") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := target.RawCmd(ctx, stmt); err != nil {
			log.Fatalf("Failed to apply migration: %v", err)
		}
	}
	fmt.Println("-- Applied --")
}

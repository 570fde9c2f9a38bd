package connector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sqldef/schemacore/internal/ir"
	"github.com/sqldef/schemacore/pkg/sqlerr"
)

// ShadowOptions configures SqlSchemaFromMigrationHistory (§4.8).
// External, when non-nil, supplies an already-connected shadow database
// that the caller owns; otherwise a temporary database is created and
// dropped by this call.
type ShadowOptions struct {
	Namespaces  []string
	MultiSchema bool // when false, namespaces are cleared during normalization
	External    *Connector
}

// SqlSchemaFromMigrationHistory implements §4.8's central algorithm:
// realize a migration history as an IR by replaying it against a shadow
// database. It is one suspension-point sequence (§5): create/connect,
// apply each script in order, describe, normalize, drop on completion —
// the drop always runs, even on error or cancellation.
func (c *Connector) SqlSchemaFromMigrationHistory(ctx context.Context, migrations []Migration, opts ShadowOptions) (*ir.SqlSchema, error) {
	shadow := opts.External
	var cleanup func(context.Context) error

	if shadow != nil {
		if c.Info.Equivalent(shadow.Info) {
			return nil, sqlerr.ShadowDbEqualsMainDb()
		}
		if err := shadow.Reset(ctx, opts.Namespaces); err != nil {
			return nil, err
		}
	} else {
		created, drop, err := c.createTemporaryShadow(ctx)
		if err != nil {
			return nil, err
		}
		shadow = created
		cleanup = drop
	}

	defer func() {
		if cleanup != nil {
			_ = cleanup(context.Background())
		}
		if opts.External == nil && shadow != nil {
			shadow.Close()
		}
	}()

	for _, m := range migrations {
		if err := shadow.ApplyMigrationScript(ctx, m.Name, m.Script); err != nil {
			return nil, sqlerr.MigrationFailedToApply(m.Name, err)
		}
	}

	schema, _, err := shadow.DescribeSchema(ctx, opts.Namespaces)
	if err != nil {
		return nil, err
	}

	// The migrations table is already absent from schema (every describer
	// filters it out), but the physical shadow database still needs
	// cleaning up before normalization (§4.8 step 5).
	if err := shadow.dropMigrationsTable(ctx); err != nil {
		return nil, err
	}

	if !opts.MultiSchema {
		schema = clearNamespaces(schema)
	}

	return schema, nil
}

// createTemporaryShadow creates a uniquely named temporary database
// alongside the main one and connects to it, mirroring §4.8 step 2. The
// returned drop function drops the temporary database; it is always
// invoked by the caller's defer, satisfying §5's "drop-on-completion MUST
// still run" cancellation guarantee.
func (c *Connector) createTemporaryShadow(ctx context.Context) (*Connector, func(context.Context) error, error) {
	name := fmt.Sprintf("shadow_%s", shadowSuffix())

	if err := c.createDatabase(ctx, name); err != nil {
		return nil, nil, err
	}

	shadowInfo := c.Info
	shadowInfo.Database = name
	if shadowInfo.Scheme == "file" {
		shadowInfo.FilePath = filepath.Join(filepath.Dir(c.Info.FilePath), name+".db")
	}
	shadowURL := c.shadowURL(shadowInfo)

	shadow, err := Connect(ctx, shadowURL)
	if err != nil {
		_ = c.dropDatabase(ctx, name)
		return nil, nil, err
	}

	drop := func(ctx context.Context) error {
		shadow.Close()
		if shadowInfo.Scheme == "file" {
			return os.Remove(shadowInfo.FilePath)
		}
		return c.dropDatabase(ctx, name)
	}
	return shadow, drop, nil
}

func (c *Connector) createDatabase(ctx context.Context, name string) error {
	switch c.Dial.Name() {
	case "sqlite":
		return nil // SQLite "databases" are files; the shadow Connect call creates it on open.
	default:
		return c.RawCmd(ctx, fmt.Sprintf("CREATE DATABASE %s", c.Dial.QuoteIdentifier(name)))
	}
}

func (c *Connector) dropDatabase(ctx context.Context, name string) error {
	switch c.Dial.Name() {
	case "sqlite":
		return nil
	default:
		return c.RawCmd(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", c.Dial.QuoteIdentifier(name)))
	}
}

// shadowURL rebuilds a connection URL for info, reusing c's scheme/host/
// credentials with the shadow database name substituted in.
func (c *Connector) shadowURL(info ConnectionInfo) string {
	switch info.Scheme {
	case "file":
		return "file:" + info.FilePath
	default:
		return fmt.Sprintf("%s://%s:%s@%s:%d/%s", info.Scheme, info.User, info.Password, info.Host, info.Port, info.Database)
	}
}

// clearNamespaces implements §4.8's "clear namespaces when multi-schema
// preview is off" normalization: every table/enum/view/sequence is moved
// onto the schema's first namespace and the other namespaces are removed,
// so single-schema callers never see per-connection namespace noise.
func clearNamespaces(schema *ir.SqlSchema) *ir.SqlSchema {
	clone := schema.Clone()
	if len(clone.Namespaces) <= 1 {
		return clone
	}
	keep := clone.Namespaces[0].ID
	clone.Namespaces = clone.Namespaces[:1]
	for i := range clone.Tables {
		clone.Tables[i].NamespaceID = keep
	}
	for i := range clone.Enums {
		clone.Enums[i].NamespaceID = keep
	}
	for i := range clone.Views {
		clone.Views[i].NamespaceID = keep
	}
	for i := range clone.Sequences {
		clone.Sequences[i].NamespaceID = keep
	}
	return clone
}

// shadowSuffix produces a disposable unique name component. Grounded on
// the pack's pervasive use of google/uuid for exactly this role; trimmed
// to the UUID's first segment since database names have tight length
// limits on some dialects (MySQL: 64 bytes).
func shadowSuffix() string {
	id := uuid.NewString()
	return strings.ReplaceAll(id[:8], "-", "")
}

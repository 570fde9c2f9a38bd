// Package connector implements the dialect-agnostic façade of spec §4.8
// (C9): the SqlConnector surface, the shadow-database protocol, and
// per-dialect advisory locking. Grounded on the teacher's
// database.Database interface (database/database.go) and its per-dialect
// NewDatabase constructors — this package plays the same "own one *sql.DB,
// expose a handful of verbs" role, generalized to the dialect-bound IR
// instead of a DDL-string-producing dump.
package connector

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sqldef/schemacore/pkg/sqlerr"
)

// ConnectionInfo is the parsed form of one of the URL schemes §6 accepts:
// postgres://, postgresql://, mysql://, sqlserver://, file:/SQLite path.
type ConnectionInfo struct {
	Scheme         string
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	Schema         string // query param "schema", Postgres search_path / MSSQL schema
	SSLMode        string
	ConnectTimeout int // seconds, query param "connect_timeout"
	SSLIdentity    string
	FilePath       string // set instead of Host/Database for file:/SQLite
}

// DialectName maps the parsed scheme to the internal/dialect registry
// name. CockroachDB/MariaDB/Vitess aliasing happens later, from the
// server-version banner observed at connect time (§6), not from the URL
// alone.
func (c ConnectionInfo) DialectName() string {
	switch c.Scheme {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlserver":
		return "sqlserver"
	case "file":
		return "sqlite"
	default:
		return ""
	}
}

// Equivalent reports whether two connection infos name the same physical
// database, the check the façade uses to refuse a shadow database that
// equals the main one (§4.8).
func (c ConnectionInfo) Equivalent(other ConnectionInfo) bool {
	if c.Scheme == "file" || other.Scheme == "file" {
		return c.FilePath != "" && c.FilePath == other.FilePath
	}
	return c.Scheme == other.Scheme && c.Host == other.Host && c.Port == other.Port && c.Database == other.Database
}

// ParseConnectionURL implements §6's URL surface. The façade never
// persists the URL once parsed (§6): callers keep only the ConnectionInfo
// and the already-open *sql.DB.
func ParseConnectionURL(raw string) (ConnectionInfo, error) {
	if strings.HasPrefix(raw, "file:") {
		return ConnectionInfo{Scheme: "file", FilePath: strings.TrimPrefix(raw, "file:")}, nil
	}
	if !strings.Contains(raw, "://") {
		return ConnectionInfo{Scheme: "file", FilePath: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ConnectionInfo{}, sqlerr.Other(fmt.Sprintf("invalid connection URL: %s", raw), err)
	}

	info := ConnectionInfo{Scheme: u.Scheme, Host: u.Hostname()}
	if u.User != nil {
		info.User = u.User.Username()
		info.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		info.Port, _ = strconv.Atoi(p)
	}
	info.Database = strings.TrimPrefix(u.Path, "/")
	if i := strings.IndexByte(info.Database, '/'); i >= 0 {
		info.Database = info.Database[:i]
	}

	q := u.Query()
	info.Schema = q.Get("schema")
	info.SSLMode = q.Get("sslmode")
	info.SSLIdentity = q.Get("sslidentity")
	if ct := q.Get("connect_timeout"); ct != "" {
		info.ConnectTimeout, _ = strconv.Atoi(ct)
	}

	if info.DialectName() == "" {
		return ConnectionInfo{}, sqlerr.Other(fmt.Sprintf("unrecognized connection scheme %q", u.Scheme), nil)
	}
	return info, nil
}

// DSN renders the driver-specific data source name Connect's sql.Open
// call needs. Grounded on the teacher's per-dialect dataSource()
// helpers in database/<dialect>/database.go.
func (c ConnectionInfo) DSN() string {
	switch c.Scheme {
	case "file":
		return c.FilePath
	case "postgres", "postgresql":
		var b strings.Builder
		fmt.Fprintf(&b, "host=%s dbname=%s", c.Host, c.Database)
		if c.Port != 0 {
			fmt.Fprintf(&b, " port=%d", c.Port)
		}
		if c.User != "" {
			fmt.Fprintf(&b, " user=%s", c.User)
		}
		if c.Password != "" {
			fmt.Fprintf(&b, " password=%s", c.Password)
		}
		if c.SSLMode != "" {
			fmt.Fprintf(&b, " sslmode=%s", c.SSLMode)
		} else {
			b.WriteString(" sslmode=disable")
		}
		return b.String()
	case "mysql":
		var b strings.Builder
		fmt.Fprintf(&b, "%s:%s@tcp(%s:%d)/%s", c.User, c.Password, c.Host, portOr(c.Port, 3306), c.Database)
		return b.String()
	case "sqlserver":
		v := url.Values{}
		if c.Database != "" {
			v.Set("database", c.Database)
		}
		u := url.URL{Scheme: "sqlserver", Host: fmt.Sprintf("%s:%d", c.Host, portOr(c.Port, 1433)), RawQuery: v.Encode()}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		return u.String()
	default:
		return ""
	}
}

func portOr(port, def int) int {
	if port == 0 {
		return def
	}
	return port
}

package queue

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed schema.sql
var sqliteSchemaSQL string

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// dialect captures the few places SQLite and PostgreSQL disagree. Queries are
// written with ? placeholders and rebound for drivers that want $n.
type dialect struct {
	name             string
	driverName       string
	schema           string
	schemaTableQuery string
	numbered         bool
}

var (
	sqliteDialect = dialect{
		name:             "sqlite",
		driverName:       "sqlite",
		schema:           sqliteSchemaSQL,
		schemaTableQuery: "SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	}
	postgresDialect = dialect{
		name:             "postgres",
		driverName:       "pgx",
		schema:           postgresSchemaSQL,
		schemaTableQuery: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'schema_version'",
		numbered:         true,
	}
)

func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// statements splits a schema script into individual statements so each
// driver can execute them without multi-statement support.
func statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		var kept []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(kept, "\n")))
		}
	}
	return out
}

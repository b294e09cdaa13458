package store

import (
	"strconv"
	"strings"
)

// DSN types understood by DetectDSNType.
const (
	DSNTypeSQLite   = "sqlite3"
	DSNTypePostgres = "postgres"
)

// DetectDSNType guesses the SQL driver for a DSN. Anything that is not a
// Postgres URL or keyword/value string is treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DSNTypePostgres
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") || strings.Contains(lower, "user="):
		return DSNTypePostgres
	default:
		return DSNTypeSQLite
	}
}

// rebind rewrites ? placeholders into $1, $2, ... for Postgres.
func rebind(dialect, query string) string {
	if dialect != DSNTypePostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

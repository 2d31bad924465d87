// Package migrations embeds the SQL schema for each supported dialect.
package migrations

import "embed"

// FS holds sqlite3/*.sql and postgres/*.sql.
//
//go:embed sqlite3/*.sql postgres/*.sql
var FS embed.FS

// Package migrations embeds the schema migrations for each supported dialect.
package migrations

import "embed"

// SQLite holds the migrations applied to SQLite databases.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds the migrations applied to Postgres databases.
//
//go:embed postgres/*.sql
var Postgres embed.FS

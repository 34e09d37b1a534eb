// Package migrations embeds the schema migrations for each supported database.
package migrations

import "embed"

// Embedded migration files bundled at compile time.
// Files apply in lexical order; applied files must never change.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS

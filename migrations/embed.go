// Package migrations embeds the SQL schema files applied at startup.
package migrations

import "embed"

// FS holds every NNN_name.sql migration
//
//go:embed *.sql
var FS embed.FS

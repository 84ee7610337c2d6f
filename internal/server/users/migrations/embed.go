// Package migrations embeds the SQL schema applied by goose when the
// Postgres-backed credential store is selected.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

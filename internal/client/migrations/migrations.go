// Package migrations embeds the goose SQL migrations for the scanner's local database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

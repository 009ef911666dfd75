// Package migrations embeds and applies the Postgres schema.
package migrations

import "embed"

//go:embed sql/*.sql
var files embed.FS

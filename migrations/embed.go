// Package migrations embeds the SQL schema migrations so the engine binary
// and its tests carry the schema with them.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the SQL schema migrations so the service can
// bring its own schema up at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Package migrations embeds the classroom schema migrations applied by the
// sqlite store on open.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

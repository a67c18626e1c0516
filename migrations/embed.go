// Package migrations holds the store A schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

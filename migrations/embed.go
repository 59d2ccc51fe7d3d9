// Package migrations embeds the goose SQL migrations of the service-log schema.
package migrations

import "embed"

// FS holds every *.sql migration at its root, as goose.NewProvider expects.
//
//go:embed *.sql
var FS embed.FS

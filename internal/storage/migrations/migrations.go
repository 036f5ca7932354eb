// Package migrations embeds the durable scope schema for goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

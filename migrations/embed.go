// Package migrations holds the SQL schema of the service.
package migrations

import "embed"

// FS contains every *.up.sql file of this directory.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory inside FS passed to db.Migrate.
const Dir = "."

package sqlite

import "embed"

// Migrations holds the schema of the console database
//
//go:embed migrations/*.sql
var Migrations embed.FS

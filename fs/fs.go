package appfs

import "embed"

// MigrationsDir is the directory of FS holding the goose SQL migrations.
const MigrationsDir = "migrations"

//go:embed migrations/*.sql
var FS embed.FS

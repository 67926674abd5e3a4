package db

import "embed"

// sqlSchemas holds the migration files applied by MigrateSQLite.
//
//go:embed migrations/*.sql
var sqlSchemas embed.FS

// Package migrations holds the schema for the Postgres-backed stores. Each
// migration lives in its own file named <version>_<comment>.go.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()

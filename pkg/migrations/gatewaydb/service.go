// Package gatewaydb holds all the migrations for the deposit gateway database
package gatewaydb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the gateway database
var Migrations = migrate.NewMigrations()

// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the DDL for every table, index and constraint the service
// needs. Applied idempotently by repository.RunMigrations.
//
//go:embed migrations/001_schema.sql
var Schema string

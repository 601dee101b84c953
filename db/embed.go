// Package db embeds the database schema.
package db

import _ "embed"

// Schema contains the DDL for the shop configuration store.
//
//go:embed migrations/001_schema.sql
var Schema string

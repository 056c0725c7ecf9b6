// Package db embeds the storefront schema so a fresh binary can migrate its
// own database on startup.
package db

import _ "embed"

// Schema holds the DDL for the products, orders, carts, api_keys, and
// outbox_events tables. RunMigrations applies it idempotently.
//
//go:embed migrations/001_schema.sql
var Schema string

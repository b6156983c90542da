// Package db embeds the settlement schema applied at startup.
package db

import _ "embed"

// Schema creates the order, coupon, rate, payout and API key tables. Every
// statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string

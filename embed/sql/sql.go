package sql

import _ "embed"

// Schema is the full database schema. Statements are idempotent so the
// schema can be re-applied on every startup.
//
//go:embed schema.sql
var Schema string

// Package sqlstore is a relational authguard.TokenStore built on sqlx.
//
// Supported drivers are "sqlite" (modernc.org/sqlite), "pgx"
// (github.com/jackc/pgx/v5/stdlib) and "postgres" (github.com/lib/pq). The
// auth_tokens table carries UNIQUE(purpose, email), so the database itself
// guarantees at most one live token per pair; Replace retries when a
// concurrent writer wins the insert and reports authguard.ErrTokenConflict
// when it keeps losing.
//
// Apply the schema with Migrate before use.
package sqlstore

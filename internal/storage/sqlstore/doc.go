// Package sqlstore implements the store on database/sql for sqlite
// (mattn/go-sqlite3) and postgres (pgx stdlib driver).
//
// The schema lives in embedded goose migrations, one directory per dialect,
// and is applied on Open. Queries are written with '?' placeholders and
// rebound for postgres. Permissions cascade through foreign keys; session
// touch runs in a transaction holding the row lock so that it cannot
// interleave with a delete of the same session.
package sqlstore

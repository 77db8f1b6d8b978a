// Package store owns the single SQLite database shared by every domain
// package (assets, jobs, rules, roles, config export). It follows the
// a shared store in shape — WAL mode, busy_timeout, a
// schema_version table, ALTER TABLE migrations gated on the stored
// version — but exposes a thin *DB wrapper instead of a jobs-specific
// interface, so assets/jobs/rules each own their table's SQL.
package store

import (
	"database/sql"
	"sync"
)

// DB wraps the shared *sql.DB with a mutex matching the
// RWMutex-guarded SQLiteStore — modernc.org/sqlite serializes writers
// internally, but the mutex keeps multi-statement sequences (e.g. an
// asset upsert plus its FTS row) atomic from the caller's perspective
// when not already wrapped in a transaction.
type DB struct {
	conn *sql.DB
	Mu   sync.RWMutex
	path string
}

// Conn returns the underlying *sql.DB for packages that need direct access
// (prepared statements, transactions).
func (d *DB) Conn() *sql.DB { return d.conn }

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the database connection.
func (d *DB) Close() error { return d.conn.Close() }

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (d *DB) WithTx(fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

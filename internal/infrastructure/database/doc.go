// Package database manages the SQLite connection backing the Hearth
// device catalogue.
//
// It opens the database with WAL and a busy timeout, pins the pool to
// SQLite's single writer, and applies embedded schema migrations at
// startup. Migration files are registered by the top-level migrations
// package via MigrationsFS.
package database

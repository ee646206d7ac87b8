// Package queue persists outstanding work items and exposes the Manager that
// every other component goes through to change them.
//
// The Store keeps one row per fingerprint in SQLite (modernc, the default) or
// PostgreSQL (pgx). Deduplication relies on the primary key alone: Insert
// reports ErrConflict and Manager.Save reads the existing row back, so
// concurrent producers in separate processes still collapse onto one row.
//
// Rows move PENDING -> ACTIVATING -> PROCESSING and are deleted when their
// handler finishes. State updates are unconditional overwrites.
//
// The database is transient storage for in-flight work. Schema changes bump
// the version in schema.go; operators clear the queue to adopt the new schema.
package queue

package queue

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// ErrConflict reports that a work item with the same fingerprint already exists.
var ErrConflict = errors.New("work item already exists")

const (
	sqliteConstraintCode      = 19 // SQLITE_CONSTRAINT primary result code
	postgresUniqueViolation   = "23505"
	sqliteBusyCode            = 5
	sqlitePrimaryResultMask   = 0xff
	postgresSerializationCode = "40001"
)

// isUniqueViolation reports whether err is a uniqueness violation from either
// supported driver. Extended SQLite codes such as SQLITE_CONSTRAINT_PRIMARYKEY
// (1555) carry the primary code in their low byte.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&sqlitePrimaryResultMask == sqliteConstraintCode
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}

// isRetryable reports whether err is a transient lock or serialization failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&sqlitePrimaryResultMask == sqliteBusyCode
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresSerializationCode
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

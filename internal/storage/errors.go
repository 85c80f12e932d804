package storage

import (
	"errors"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound means the story or version does not exist, or the version
	// belongs to a different story. Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a concurrent writer won the version-numbering or
	// content-hash race. The whole ingest is safe to redo.
	ErrConflict = errors.New("write conflict")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT,
			sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY,
			sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// Package sqlite implements the SQLite audit store on modernc.org/sqlite.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:audit.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string

	// TablePrefix is prepended to the audit table names.
	TablePrefix string
}

package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the TrendVest store: topics, mention observations, momentum
// scores and cached headlines, all in one SQLite file.
type DB struct {
	conn *sql.DB
	path string
}

// openPragmas configure every connection. WAL plus a busy timeout let
// the collection pipeline and the API server write through separate
// handles on the same file without tripping over short-lived locks.
var openPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

// Open creates or opens the store at the given path and migrates its
// schema to the latest version.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	q := make(url.Values)
	for _, pragma := range openPragmas {
		q.Add("_pragma", pragma)
	}
	conn, err := sql.Open("sqlite", "file:"+dbPath+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Package sqlite provides a SQLite-based document store for simpledocs.
// Embeddings are stored as little-endian float32 blobs and ranked in
// process.
package sqlite

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/fwojciec/simpledocs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// migrations are applied in order. PRAGMA user_version records how many
// have run, so existing databases only pick up the new entries.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		original_url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		parent_url TEXT NOT NULL DEFAULT '',
		source_domain TEXT NOT NULL DEFAULT '',
		doc_type TEXT NOT NULL DEFAULT '',
		doc_section TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source_domain ON documents(source_domain);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_original_url ON documents(original_url);`,
}

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// DB is a SQLite connection limited to a single writer.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB for path. Use ":memory:" for a throwaway
// database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

func (db *DB) inMemory() bool {
	return db.path == ":memory:"
}

// Open connects, applies connection pragmas and migrates the schema.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return simpledocs.Errorf(simpledocs.ESTORAGE, "open %s: %v", db.path, err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"}
	if !db.inMemory() {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return simpledocs.Errorf(simpledocs.ESTORAGE, "%s: %v", p, err)
		}
	}

	db.db = conn
	if err := db.migrate(context.Background()); err != nil {
		_ = conn.Close()
		db.db = nil
		return err
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	var version int
	if err := db.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return simpledocs.Errorf(simpledocs.ESTORAGE, "read schema version: %v", err)
	}
	if version > len(migrations) {
		return simpledocs.Errorf(simpledocs.ESTORAGE, "database schema version %d is newer than supported version %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			return simpledocs.Errorf(simpledocs.ESTORAGE, "begin migration %d: %v", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return simpledocs.Errorf(simpledocs.ESTORAGE, "migration %d: %v", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(i+1)); err != nil {
			_ = tx.Rollback()
			return simpledocs.Errorf(simpledocs.ESTORAGE, "record migration %d: %v", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return simpledocs.Errorf(simpledocs.ESTORAGE, "commit migration %d: %v", i+1, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, opts)
}

package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection and provides thread-safe database operations.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS flows (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flows_updated ON flows(updated_at DESC)`,

		`CREATE TABLE IF NOT EXISTS flow_nodes (
			flow_id     TEXT NOT NULL,
			node_id     TEXT NOT NULL,
			position    INTEGER NOT NULL,
			node_type   TEXT NOT NULL,
			x           REAL NOT NULL,
			y           REAL NOT NULL,
			label       TEXT NOT NULL,
			PRIMARY KEY (flow_id, node_id),
			FOREIGN KEY (flow_id) REFERENCES flows(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_nodes_order ON flow_nodes(flow_id, position)`,

		// Edges carry no foreign key to flow_nodes: dangling edges are kept.
		`CREATE TABLE IF NOT EXISTS flow_edges (
			flow_id     TEXT NOT NULL,
			position    INTEGER NOT NULL,
			from_node   TEXT NOT NULL,
			to_node     TEXT NOT NULL,
			PRIMARY KEY (flow_id, position),
			FOREIGN KEY (flow_id) REFERENCES flows(id) ON DELETE CASCADE
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.conn.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Tx runs fn in a transaction while holding the write lock. The
// transaction is rolled back when fn returns an error.
func (db *DB) Tx(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Lock() {
	db.mu.Lock()
}

func (db *DB) Unlock() {
	db.mu.Unlock()
}

func (db *DB) RLock() {
	db.mu.RLock()
}

func (db *DB) RUnlock() {
	db.mu.RUnlock()
}

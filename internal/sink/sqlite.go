// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// SQLite stores records of one kind in a shared records table. Rows are
// keyed by (kind, key); a key already present is left untouched.
type SQLite struct {
	db      *sql.DB
	kind    string
	columns []string
	now     func() time.Time
}

// OpenSQLite opens or creates the database at path and its schema.
func OpenSQLite(path, kind string, columns []string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, kind: kind, columns: columns, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			fields TEXT NOT NULL,
			harvested_at TEXT NOT NULL,
			PRIMARY KEY (kind, key)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Put inserts rec. It reports false when the key is already stored.
func (s *SQLite) Put(rec types.Record) (bool, error) {
	values := rec.Values()
	fields := make(map[string]string, len(s.columns))
	for i, col := range s.columns {
		if i < len(values) {
			fields[col] = values[i]
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", rec.Key(), err)
	}

	res, err := s.db.Exec(
		`INSERT INTO records (kind, key, fields, harvested_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, key) DO NOTHING`,
		s.kind, rec.Key(), string(data), s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", rec.Key(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting %s: %w", rec.Key(), err)
	}
	return n == 1, nil
}

// Known returns the stored keys of this kind in insertion order.
func (s *SQLite) Known() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT key FROM records WHERE kind = ? ORDER BY rowid`, s.kind)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading keys: %w", err)
	}
	return keys, nil
}

// Rows returns every stored record of this kind as a row in column order.
func (s *SQLite) Rows() ([][]string, error) {
	rows, err := s.db.Query(
		`SELECT fields FROM records WHERE kind = ? ORDER BY rowid`, s.kind)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		var fields map[string]string
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		row := make([]string, len(s.columns))
		for i, col := range s.columns {
			row[i] = fields[col]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

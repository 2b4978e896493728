package forsp

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	op         TEXT NOT NULL,
	name       TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS traces (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	entry     TEXT NOT NULL,
	stack     TEXT NOT NULL,
	output    TEXT NOT NULL DEFAULT '',
	error     TEXT NOT NULL DEFAULT '',
	steps     INTEGER NOT NULL DEFAULT 0,
	timestamp TEXT NOT NULL
);`

// Entry ops recorded in the session log.
const (
	OpDefine = "define"
	OpDelete = "delete"
)

// Entry is one session log record.
type Entry struct {
	Seq       int64
	Op        string
	Name      string
	Source    string
	CreatedAt string
}

// Store persists the session log and evaluation traces in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at path. ":memory:" gives a
// private in-memory store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AppendEntry(op, name, source string) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (op, name, source, created_at) VALUES (?, ?, ?, ?)`,
		op, name, source, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("append %s %s: %w", op, name, err)
	}
	return nil
}

// Entries returns the session log in the order it was written.
func (s *Store) Entries() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT seq, op, name, source, created_at FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Op, &e.Name, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) AppendTrace(t *Trace) error {
	stack, err := json.Marshal(t.Stack)
	if err != nil {
		return fmt.Errorf("marshal stack: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO traces (entry, stack, output, error, steps, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Entry, string(stack), t.Output, t.Error, t.Steps, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append trace: %w", err)
	}
	return nil
}

// RecentTraces returns up to n of the newest traces, oldest first.
func (s *Store) RecentTraces(n int) ([]Trace, error) {
	rows, err := s.db.Query(
		`SELECT entry, stack, output, error, steps, timestamp FROM traces ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var traces []Trace
	for rows.Next() {
		var t Trace
		var stack string
		if err := rows.Scan(&t.Entry, &stack, &t.Output, &t.Error, &t.Steps, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		if err := json.Unmarshal([]byte(stack), &t.Stack); err != nil {
			return nil, fmt.Errorf("decode trace stack: %w", err)
		}
		traces = append(traces, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(traces)-1; i < j; i, j = i+1, j-1 {
		traces[i], traces[j] = traces[j], traces[i]
	}
	return traces, nil
}

// Clear deletes the session log and all traces in one transaction.
func (s *Store) Clear() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM entries`, `DELETE FROM traces`} {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear: %w", err)
		}
	}
	return tx.Commit()
}

package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// history persists REPL inputs in a SQLite database, one row per input,
// grouped by a per-process session id.
type history struct {
	db      *sql.DB
	session string
}

const historySchema = `
CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session    TEXT NOT NULL,
	entered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	input      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS history_session ON history(session);
`

func openHistory(path string) (*history, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize history database: %w", err)
	}
	return &history{db: db, session: uuid.NewString()}, nil
}

// Record stores one REPL input under the current session.
func (h *history) Record(input string) error {
	_, err := h.db.Exec("INSERT INTO history (session, input) VALUES (?, ?)", h.session, input)
	if err != nil {
		return fmt.Errorf("cannot record history: %w", err)
	}
	return nil
}

// Recent returns up to n inputs across all sessions, oldest first.
func (h *history) Recent(n int) ([]string, error) {
	rows, err := h.db.Query(
		"SELECT input FROM (SELECT id, input FROM history ORDER BY id DESC LIMIT ?) ORDER BY id",
		n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var input string
		if err := rows.Scan(&input); err != nil {
			return nil, err
		}
		entries = append(entries, input)
	}
	return entries, rows.Err()
}

func (h *history) Close() error {
	return h.db.Close()
}

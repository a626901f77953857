package dataset

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists datasets in sqlite so downstream tooling can query examples
// without re-parsing CSV.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS examples (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			partition TEXT NOT NULL,
			pid       INTEGER NOT NULL,
			function  TEXT NOT NULL,
			start     INTEGER NOT NULL,
			end       INTEGER NOT NULL,
			label     INTEGER NOT NULL,
			attack    INTEGER NOT NULL,
			features  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_examples_run ON examples(run_id, partition);
	`)

	return err
}

// SaveDataset inserts both partitions under one run id in a single
// transaction. Features are stored as a JSON array column.
func (s *Store) SaveDataset(runID string, d *Dataset) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO examples (run_id, partition, pid, function, start, end, label, attack, features)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, part := range []struct {
		name     string
		examples []Example
	}{
		{"train", d.Train},
		{"test", d.Test},
	} {
		for _, ex := range part.examples {
			features, err := json.Marshal(ex.Features)
			if err != nil {
				return fmt.Errorf("failed to marshal features: %w", err)
			}

			if _, err := stmt.Exec(runID, part.name, ex.PID, ex.FunctionLabel,
				ex.Start, ex.End, ex.Label, ex.Attack, string(features)); err != nil {
				return fmt.Errorf("failed to insert example: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}

	return nil
}

// CountExamples reports how many examples a run stored in a partition.
func (s *Store) CountExamples(runID, partition string) (int, error) {
	var n int

	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM examples WHERE run_id = ? AND partition = ?",
		runID, partition,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count examples: %w", err)
	}

	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

package storage

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Index is the optional SQLite catalogue of archived matches. The flat
// files stay authoritative; the index only makes archives queryable.
type Index struct {
	db   *sql.DB
	path string
}

// NewIndex opens (creating if needed) the index database
func NewIndex(dataSourceName string) (*Index, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One writer per invocation
	db.SetMaxOpenConns(1)

	return &Index{db: db, path: dataSourceName}, nil
}

// InitDB creates the database schema
func (x *Index) InitDB() error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}

// Close closes the database connection
func (x *Index) Close() error {
	if x.db != nil {
		return x.db.Close()
	}
	return nil
}

// DeleteDB removes the database file
func (x *Index) DeleteDB() error {
	if err := x.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if err := os.Remove(x.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete database file: %w", err)
	}

	return nil
}

// RecordArchive stores one archived match with its participants
func (x *Index) RecordArchive(record ArchiveRecord) error {
	tx, err := x.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO archives (
		archive_id, path, result, outcome, termination, num_moves, archived_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ArchiveID, record.Path, record.Result, record.Outcome,
		record.Termination, record.NumMoves, record.ArchivedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert archive: %w", err)
	}

	for i, identity := range record.Players {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO archive_players (archive_id, position, identity) VALUES (?, ?, ?)`,
			record.ArchiveID, i, identity,
		); err != nil {
			return fmt.Errorf("insert archive player: %w", err)
		}
	}

	return tx.Commit()
}

// QueryArchives retrieves archived matches, newest first. Empty or "*"
// filters match everything.
func (x *Index) QueryArchives(player, outcome string) ([]ArchiveRecord, error) {
	query := `SELECT archive_id, path, result, outcome, termination, num_moves, archived_at
	FROM archives a WHERE 1=1`

	var args []interface{}

	if player != "" && player != "*" {
		query += " AND EXISTS (SELECT 1 FROM archive_players p WHERE p.archive_id = a.archive_id AND p.identity = ?)"
		args = append(args, player)
	}

	if outcome != "" && outcome != "*" {
		query += " AND outcome = ?"
		args = append(args, strings.ToLower(outcome))
	}

	query += " ORDER BY archived_at DESC"

	rows, err := x.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []ArchiveRecord
	for rows.Next() {
		var r ArchiveRecord
		if err := rows.Scan(
			&r.ArchiveID, &r.Path, &r.Result, &r.Outcome,
			&r.Termination, &r.NumMoves, &r.ArchivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	for i := range records {
		players, err := x.players(records[i].ArchiveID)
		if err != nil {
			return nil, err
		}
		records[i].Players = players
	}

	return records, nil
}

func (x *Index) players(archiveID string) ([]string, error) {
	rows, err := x.db.Query(
		`SELECT identity FROM archive_players WHERE archive_id = ? ORDER BY position`, archiveID)
	if err != nil {
		return nil, fmt.Errorf("query players failed: %w", err)
	}
	defer rows.Close()

	var players []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

package storage

import "time"

// ArchiveRecord represents a row in the archives table
type ArchiveRecord struct {
	ArchiveID   string    `db:"archive_id"`
	Path        string    `db:"path"`
	Result      string    `db:"result"`
	Outcome     string    `db:"outcome"`
	Termination string    `db:"termination"`
	NumMoves    int       `db:"num_moves"`
	Players     []string  `db:"-"`
	ArchivedAt  time.Time `db:"archived_at"`
}

// Schema defines the SQLite archive index structure
const Schema = `
CREATE TABLE IF NOT EXISTS archives (
	archive_id TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	result TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('white wins', 'black wins', 'draw', 'unknown')),
	termination TEXT NOT NULL,
	num_moves INTEGER NOT NULL DEFAULT 0,
	archived_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS archive_players (
	archive_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	identity TEXT NOT NULL COLLATE NOCASE,
	FOREIGN KEY (archive_id) REFERENCES archives(archive_id) ON DELETE CASCADE,
	UNIQUE(archive_id, identity)
);

CREATE INDEX IF NOT EXISTS idx_archives_archived_at ON archives(archived_at);
CREATE INDEX IF NOT EXISTS idx_archive_players_identity ON archive_players(identity);
`

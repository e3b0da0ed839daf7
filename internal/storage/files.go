package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default artifact locations, relative to the workspace root
const (
	DefaultMatchPath       = "games/current.pgn"
	DefaultArchiveDir      = "games"
	DefaultHistoryPath     = "data/last_moves.txt"
	DefaultLeaderboardPath = "data/top_moves.txt"
	DefaultSettingsPath    = "data/settings.yaml"
	DefaultLockPath        = "data/.chessbot.lock"
	DefaultReadmePath      = "README.md"

	archiveTimeFormat = "20060102-150405"
)

// Layout holds absolute paths of every artifact in a workspace
type Layout struct {
	Root        string
	Match       string
	ArchiveDir  string
	History     string
	Leaderboard string
	Settings    string
	Lock        string
	Readme      string
}

// NewLayout resolves the default artifact paths under root
func NewLayout(root string) Layout {
	join := func(p string) string { return filepath.Join(root, filepath.FromSlash(p)) }
	return Layout{
		Root:        root,
		Match:       join(DefaultMatchPath),
		ArchiveDir:  join(DefaultArchiveDir),
		History:     join(DefaultHistoryPath),
		Leaderboard: join(DefaultLeaderboardPath),
		Settings:    join(DefaultSettingsPath),
		Lock:        join(DefaultLockPath),
		Readme:      join(DefaultReadmePath),
	}
}

// Store gives typed access to the flat-file artifacts of one workspace.
// It keeps no state between calls; every read goes to disk.
type Store struct {
	layout Layout
}

func NewStore(layout Layout) *Store {
	return &Store{layout: layout}
}

func (s *Store) Layout() Layout {
	return s.layout
}

// MatchExists reports whether an active match artifact is present
func (s *Store) MatchExists() (bool, error) {
	return exists(s.layout.Match)
}

// ReadMatch returns the raw PGN of the active match
func (s *Store) ReadMatch() ([]byte, error) {
	data, err := os.ReadFile(s.layout.Match)
	if err != nil {
		return nil, fmt.Errorf("read match artifact: %w", err)
	}
	return data, nil
}

// WriteMatch replaces the active match artifact
func (s *Store) WriteMatch(pgn string) error {
	if err := writeFileAtomic(s.layout.Match, []byte(pgn+"\n")); err != nil {
		return fmt.Errorf("write match artifact: %w", err)
	}
	return nil
}

// ArchiveMatch moves the active match to a timestamped archive path and
// returns that path. An existing archive with the same name is never
// overwritten.
func (s *Store) ArchiveMatch(at time.Time) (string, error) {
	if err := os.MkdirAll(s.layout.ArchiveDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	base := "game-" + at.Format(archiveTimeFormat)
	dst := filepath.Join(s.layout.ArchiveDir, base+".pgn")
	for i := 1; ; i++ {
		ok, err := exists(dst)
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		dst = filepath.Join(s.layout.ArchiveDir, fmt.Sprintf("%s-%d.pgn", base, i))
	}
	if err := os.Rename(s.layout.Match, dst); err != nil {
		return "", fmt.Errorf("archive match artifact: %w", err)
	}
	return dst, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// StartMarker is the move field of the synthetic first history entry
const StartMarker = "Start game"

// HistoryEntry is one line of the move-history log
type HistoryEntry struct {
	Move     string
	Identity string
}

// IsStart reports whether the entry is the synthetic start-of-game marker
func (e HistoryEntry) IsStart() bool {
	return strings.Contains(e.Move, StartMarker)
}

func (e HistoryEntry) String() string {
	return e.Move + ": " + e.Identity
}

// ParseHistoryLine splits "<move-or-marker>: <identity>". Lines without a
// colon are not entries.
func ParseHistoryLine(line string) (HistoryEntry, bool) {
	move, identity, ok := strings.Cut(line, ":")
	if !ok {
		return HistoryEntry{}, false
	}
	return HistoryEntry{
		Move:     strings.TrimSpace(move),
		Identity: strings.TrimSpace(identity),
	}, true
}

// HistoryExists reports whether the move-history log is present
func (s *Store) HistoryExists() (bool, error) {
	return exists(s.layout.History)
}

// HistoryLines returns the raw non-empty lines of the log in write order.
// A missing log reads as empty.
func (s *Store) HistoryLines() ([]string, error) {
	f, err := os.Open(s.layout.History)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history log: %w", err)
	}
	return lines, nil
}

// History returns the parsed entries of the log in write order
func (s *Store) History() ([]HistoryEntry, error) {
	lines, err := s.HistoryLines()
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(lines))
	for _, line := range lines {
		if e, ok := ParseHistoryLine(line); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ResetHistory replaces the log with a single start marker for identity
func (s *Store) ResetHistory(identity string) error {
	entry := HistoryEntry{Move: StartMarker, Identity: identity}
	if err := writeFileAtomic(s.layout.History, []byte(entry.String()+"\n")); err != nil {
		return fmt.Errorf("reset history log: %w", err)
	}
	return nil
}

// AppendHistory adds one entry at the end of the log
func (s *Store) AppendHistory(entry HistoryEntry) error {
	f, err := os.OpenFile(s.layout.History, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	line := entry.String() + "\n"
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			line = "\n" + line
		}
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append history log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync history log: %w", err)
	}
	return f.Close()
}

// DeleteHistory removes the log; a missing log is not an error
func (s *Store) DeleteHistory() error {
	if err := os.Remove(s.layout.History); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete history log: %w", err)
	}
	return nil
}

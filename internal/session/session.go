// Package session reconstructs the state of the active match from the
// workspace artifacts. A Session lives for exactly one invocation.
package session

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"chessbot/internal/rules"
	"chessbot/internal/storage"
)

// ErrCorruptMatch marks a match artifact the rules engine cannot read
var ErrCorruptMatch = errors.New("match artifact is corrupt")

// MoveRecord is one applied move and the identity that submitted it
type MoveRecord struct {
	Move     string
	Identity string
}

// Session is the reconstructed view of the match at invocation start
type Session struct {
	// Active is false when no match artifact exists
	Active bool
	Match  *rules.Match

	// Records holds every move after the start marker, in order
	Records []MoveRecord

	// LastMover is the identity on the most recent history entry
	LastMover string

	// LastIsStart is true when the most recent entry is the start marker,
	// or when no history exists for an active match
	LastIsStart bool

	// HistoryLines is the raw log, used for participant scans
	HistoryLines []string
}

// Load reads the match artifact and history log. A missing match artifact
// yields an inactive session; an unreadable one is ErrCorruptMatch.
func Load(store *storage.Store, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	active, err := store.MatchExists()
	if err != nil {
		return nil, err
	}

	lines, err := store.HistoryLines()
	if err != nil {
		return nil, err
	}

	if !active {
		if len(lines) > 0 {
			logger.Warn("history log without match artifact, treating as residue of a finished match",
				"path", store.Layout().History)
		}
		return &Session{Active: false}, nil
	}

	raw, err := store.ReadMatch()
	if err != nil {
		return nil, err
	}
	match, err := rules.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMatch, err)
	}

	s := &Session{
		Active:       true,
		Match:        match,
		LastIsStart:  true,
		HistoryLines: lines,
	}

	var entries []storage.HistoryEntry
	for _, line := range lines {
		if e, ok := storage.ParseHistoryLine(line); ok {
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 {
		logger.Warn("active match without history log, last mover unknown",
			"path", store.Layout().History)
	} else {
		last := entries[len(entries)-1]
		s.LastMover = last.Identity
		s.LastIsStart = last.IsStart()
	}

	for _, e := range entries {
		if e.IsStart() {
			s.Records = s.Records[:0]
			continue
		}
		s.Records = append(s.Records, MoveRecord{Move: e.Move, Identity: e.Identity})
	}

	if n := len(match.Moves()); n != len(s.Records) {
		logger.Warn("history log out of step with match artifact",
			"match_moves", n, "history_moves", len(s.Records))
	}

	return s, nil
}

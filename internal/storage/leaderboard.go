package storage

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LeaderboardEntry is one identity and its lifetime move count
type LeaderboardEntry struct {
	Identity string
	Count    int
}

// Leaderboard is the identity to move-count mapping. Entries keep the order
// in which identities were first recorded.
type Leaderboard struct {
	entries []LeaderboardEntry
	index   map[string]int
}

func newLeaderboard() *Leaderboard {
	return &Leaderboard{index: make(map[string]int)}
}

// Count returns the recorded moves for identity, 0 if absent
func (l *Leaderboard) Count(identity string) int {
	if i, ok := l.index[identity]; ok {
		return l.entries[i].Count
	}
	return 0
}

// Len returns the number of distinct identities
func (l *Leaderboard) Len() int {
	return len(l.entries)
}

func (l *Leaderboard) add(identity string, n int) {
	if i, ok := l.index[identity]; ok {
		l.entries[i].Count += n
		return
	}
	l.index[identity] = len(l.entries)
	l.entries = append(l.entries, LeaderboardEntry{Identity: identity, Count: n})
}

// Top returns entries by count descending, ties in insertion order,
// truncated to n. n <= 0 returns every entry.
func (l *Leaderboard) Top(n int) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// DecodeLeaderboard parses a YAML mapping of identity to positive count.
// Empty input yields an empty leaderboard.
func DecodeLeaderboard(data []byte) (*Leaderboard, error) {
	l := newLeaderboard()
	if strings.TrimSpace(string(data)) == "" {
		return l, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse leaderboard: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return l, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse leaderboard: expected mapping, got %s", root.Tag)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		count, err := strconv.Atoi(value.Value)
		if err != nil || count < 1 {
			return nil, fmt.Errorf("parse leaderboard: invalid count %q for %s", value.Value, key.Value)
		}
		l.add(key.Value, count)
	}
	return l, nil
}

// Encode renders the leaderboard as a YAML mapping in insertion order
func (l *Leaderboard) Encode() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range l.entries {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: e.Identity},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(e.Count)},
		)
	}
	if len(l.entries) == 0 {
		return []byte("{}\n"), nil
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode leaderboard: %w", err)
	}
	return out, nil
}

// Leaderboard loads the ledger; a missing file is an empty ledger
func (s *Store) Leaderboard() (*Leaderboard, error) {
	data, err := os.ReadFile(s.layout.Leaderboard)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newLeaderboard(), nil
		}
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	return DecodeLeaderboard(data)
}

// IncrementLeaderboard records one accepted move for identity and persists
// the full mapping. It returns the new count.
func (s *Store) IncrementLeaderboard(identity string) (int, error) {
	l, err := s.Leaderboard()
	if err != nil {
		return 0, err
	}
	l.add(identity, 1)
	data, err := l.Encode()
	if err != nil {
		return 0, err
	}
	if err := writeFileAtomic(s.layout.Leaderboard, data); err != nil {
		return 0, fmt.Errorf("write leaderboard: %w", err)
	}
	return l.Count(identity), nil
}

// TopN returns the n best entries of the persisted ledger
func (s *Store) TopN(n int) ([]LeaderboardEntry, error) {
	l, err := s.Leaderboard()
	if err != nil {
		return nil, err
	}
	return l.Top(n), nil
}

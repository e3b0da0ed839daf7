package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chessbot/internal/storage"
)

func TestDBLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	var out bytes.Buffer

	if err := Run([]string{"init", "--path", path}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Database initialized at: "+path) {
		t.Errorf("init output = %q", out.String())
	}

	x, err := storage.NewIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	err = x.RecordArchive(storage.ArchiveRecord{
		ArchiveID:   "0123456789abcdef",
		Path:        "games/game-20240101-000000.pgn",
		Result:      "0-1",
		Outcome:     "black wins",
		Termination: "checkmate",
		NumMoves:    4,
		Players:     []string{"@owner", "@alice", "@bob"},
		ArchivedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	x.Close()
	if err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := Run([]string{"query", "--path", path, "--player", "@bob"}, &out); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{"01234567...", "black wins", "@owner, @alice, @bob", "2024-01-01 00:00:00", "Found 1 game(s)"} {
		if !strings.Contains(text, want) {
			t.Errorf("query output missing %q:\n%s", want, text)
		}
	}

	out.Reset()
	if err := Run([]string{"query", "--path", path, "--outcome", "draw"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No archived games found") {
		t.Errorf("filtered query = %q", out.String())
	}

	out.Reset()
	if err := Run([]string{"delete", "--path", path}, &out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("database still present: %v", err)
	}
}

func TestRunErrors(t *testing.T) {
	var out bytes.Buffer
	tests := [][]string{
		nil,
		{"vacuum"},
		{"init"},
		{"query"},
	}
	for _, args := range tests {
		if err := Run(args, &out); err == nil {
			t.Errorf("Run(%v) succeeded", args)
		}
	}
}

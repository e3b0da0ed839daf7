package session

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"chessbot/internal/rules"
	"chessbot/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.NewStore(storage.NewLayout(t.TempDir()))
}

func writeMatch(t *testing.T, s *storage.Store, moves ...string) {
	t.Helper()
	m := rules.New(rules.Headers{Event: "e", Site: "s", Date: "2024.01.01", Round: "1"})
	for _, mv := range moves {
		if err := m.Apply(mv); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.WriteMatch(m.Encode()); err != nil {
		t.Fatal(err)
	}
}

func TestLoadInactive(t *testing.T) {
	s := newStore(t)
	if err := s.ResetHistory("@owner"); err != nil {
		t.Fatal(err)
	}
	sess, err := Load(s, discard)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Active {
		t.Error("orphan history log made the session active")
	}
}

func TestLoadActive(t *testing.T) {
	s := newStore(t)
	writeMatch(t, s, "e2e4", "e7e5")
	s.ResetHistory("@owner")
	s.AppendHistory(storage.HistoryEntry{Move: "e2e4", Identity: "@alice"})
	s.AppendHistory(storage.HistoryEntry{Move: "e7e5", Identity: "@bob"})

	sess, err := Load(s, discard)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Active || sess.Match == nil {
		t.Fatal("session not active")
	}
	if sess.LastMover != "@bob" || sess.LastIsStart {
		t.Errorf("last mover = %q start=%v", sess.LastMover, sess.LastIsStart)
	}
	if len(sess.Records) != 2 || sess.Records[0] != (MoveRecord{"e2e4", "@alice"}) {
		t.Errorf("records = %+v", sess.Records)
	}
	if len(sess.HistoryLines) != 3 {
		t.Errorf("history lines = %d", len(sess.HistoryLines))
	}
}

func TestLoadJustStarted(t *testing.T) {
	s := newStore(t)
	writeMatch(t, s)
	s.ResetHistory("@alice")

	sess, err := Load(s, discard)
	if err != nil {
		t.Fatal(err)
	}
	if sess.LastMover != "@alice" || !sess.LastIsStart {
		t.Errorf("last mover = %q start=%v", sess.LastMover, sess.LastIsStart)
	}
	if len(sess.Records) != 0 {
		t.Errorf("records = %+v", sess.Records)
	}
}

func TestLoadWithoutHistory(t *testing.T) {
	s := newStore(t)
	writeMatch(t, s, "e2e4")

	sess, err := Load(s, discard)
	if err != nil {
		t.Fatal(err)
	}
	if !sess.Active || sess.LastMover != "" || !sess.LastIsStart {
		t.Errorf("session = %+v", sess)
	}
}

func TestLoadCorruptMatch(t *testing.T) {
	s := newStore(t)
	if err := os.MkdirAll(s.Layout().ArchiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Layout().Match, []byte("1. e4 e5 2. Ke3 *\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(s, discard); !errors.Is(err, ErrCorruptMatch) {
		t.Errorf("Load error = %v, want ErrCorruptMatch", err)
	}
}

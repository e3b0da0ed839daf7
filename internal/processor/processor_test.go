package processor

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chessbot/internal/config"
	"chessbot/internal/core"
	"chessbot/internal/storage"
)

const owner = "@owner"

type fixture struct {
	t     *testing.T
	store *storage.Store
	proc  *Processor
	s     *config.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := config.LoadSettings("../../data/settings.yaml")
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewStore(storage.NewLayout(t.TempDir()))
	proc, err := New(store, Config{
		Owner:      owner,
		Repository: "owner/chess",
		Settings:   s,
		Now:        func() time.Time { return time.Date(2024, 5, 4, 10, 30, 0, 0, time.UTC) },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{t: t, store: store, proc: proc, s: s}
}

func (f *fixture) exec(title, identity string) Outcome {
	f.t.Helper()
	out, err := f.proc.Execute(title, identity)
	if err != nil {
		f.t.Fatalf("Execute(%q, %s): %v", title, identity, err)
	}
	return out
}

func (f *fixture) move(mv, identity string) Outcome {
	f.t.Helper()
	title := "Chess: Move " + strings.ToUpper(mv[:2]) + " to " + strings.ToUpper(mv[2:4])
	return f.exec(title, identity)
}

// play alternates two identities through moves, failing on any rejection
func (f *fixture) play(moves ...string) Outcome {
	f.t.Helper()
	var out Outcome
	for i, mv := range moves {
		who := "@alice"
		if i%2 == 1 {
			who = "@bob"
		}
		out = f.move(mv, who)
		if !out.Success {
			f.t.Fatalf("move %s by %s rejected: %s", mv, who, out.Code)
		}
	}
	return out
}

func hasLabel(out Outcome, label string) bool {
	for _, l := range out.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func TestStartNewGame(t *testing.T) {
	f := newFixture(t)
	out := f.exec("Chess: Start new game", "@alice")
	if !out.Success || !out.Close {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Labels) != 0 {
		t.Errorf("labels = %v", out.Labels)
	}
	if len(out.Comments) != 1 || !strings.HasPrefix(out.Comments[0], "@alice Done!") {
		t.Errorf("comments = %q", out.Comments)
	}

	raw, err := f.store.ReadMatch()
	if err != nil {
		t.Fatal(err)
	}
	pgn := string(raw)
	for _, want := range []string{
		`[Event "@owner's Online Open Chess Tournament"]`,
		`[Site "https://github.com/owner/chess"]`,
		`[Date "2024.05.04"]`,
		`[Round "1"]`,
	} {
		if !strings.Contains(pgn, want) {
			t.Errorf("match artifact missing %s:\n%s", want, pgn)
		}
	}

	lines, _ := f.store.HistoryLines()
	if len(lines) != 1 || lines[0] != "Start game: @alice" {
		t.Errorf("history = %q", lines)
	}
}

func TestUnauthorizedNewGame(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)
	f.play("e2e4")

	out := f.exec("Chess: Start new game", "@mallory")
	if out.Success || out.Code != core.ErrUnauthorizedNewGame {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Labels) != 0 || !out.Close {
		t.Errorf("labels = %v close = %v", out.Labels, out.Close)
	}
	lines, _ := f.store.HistoryLines()
	if len(lines) != 2 {
		t.Errorf("history changed: %q", lines)
	}
}

func TestOwnerOverride(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)
	f.play("e2e4", "e7e5")

	out := f.exec("Chess: Start new game", owner)
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	lines, _ := f.store.HistoryLines()
	if len(lines) != 1 || lines[0] != "Start game: @owner" {
		t.Errorf("history = %q", lines)
	}
	if out.Match.Turn() != core.ColorWhite || len(out.Match.Moves()) != 0 {
		t.Errorf("match not reset: %s", out.Match.FEN())
	}
}

func TestMoveAccepted(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)

	out := f.move("e2e4", "@alice")
	if !out.Success || out.Move != "e2e4" || out.Capture {
		t.Fatalf("outcome = %+v", out)
	}
	if !hasLabel(out, f.s.Labels.White) || len(out.Labels) != 1 {
		t.Errorf("labels = %v", out.Labels)
	}
	if !strings.Contains(out.Comments[0], "`e2e4`") {
		t.Errorf("comment = %q", out.Comments[0])
	}

	lines, _ := f.store.HistoryLines()
	if lines[len(lines)-1] != "e2e4: @alice" {
		t.Errorf("history = %q", lines)
	}
	l, _ := f.store.Leaderboard()
	if l.Count("@alice") != 1 {
		t.Errorf("leaderboard = %d", l.Count("@alice"))
	}

	out = f.move("e7e5", "@bob")
	if !hasLabel(out, f.s.Labels.Black) {
		t.Errorf("black move labels = %v", out.Labels)
	}
}

func TestMovesExtendStoredMainLine(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)
	f.play("e2e4", "e7e5", "g1f3", "b8c6", "f1b5")

	raw, err := f.store.ReadMatch()
	if err != nil {
		t.Fatal(err)
	}
	pgn := string(raw)
	if strings.Contains(pgn, "(") {
		t.Errorf("stored PGN has a variation:\n%s", pgn)
	}
	if !strings.Contains(pgn, "3. Bb5") {
		t.Errorf("stored PGN lost the main line:\n%s", pgn)
	}
}

func TestStarterMayPlayFirstMove(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", "@alice")
	if out := f.move("e2e4", "@alice"); !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestNoActiveMatch(t *testing.T) {
	f := newFixture(t)
	out := f.move("e2e4", "@alice")
	if out.Success || out.Code != core.ErrNoActiveMatch {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Labels) != 0 || !out.Close {
		t.Errorf("labels = %v close = %v", out.Labels, out.Close)
	}
	if ok, _ := f.store.HistoryExists(); ok {
		t.Error("history log created")
	}
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		identity string
		code     string
	}{
		{"consecutive", "Chess: Move E7 to E5", "@alice", core.ErrConsecutiveMove},
		{"illegal", "Chess: Move E7 to E4", "@bob", core.ErrIllegalMove},
		{"wrong side", "Chess: Move D2 to D4", "@bob", core.ErrIllegalMove},
		{"self target", "Chess: Move E7 to E7", "@bob", core.ErrSelfTargetingMove},
		{"malformed move", "Chess: Move nowhere", "@bob", core.ErrIllegalMove},
		{"unknown", "Chess: resign", "@bob", core.ErrMalformedCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exec("Chess: Start new game", owner)
			f.play("e2e4")

			out := f.exec(tt.title, tt.identity)
			if out.Success || out.Code != tt.code {
				t.Fatalf("outcome = %+v, want code %s", out, tt.code)
			}
			if len(out.Labels) != 1 || out.Labels[0] != f.s.Labels.Invalid {
				t.Errorf("labels = %v", out.Labels)
			}
			lines, _ := f.store.HistoryLines()
			if len(lines) != 2 {
				t.Errorf("history changed: %q", lines)
			}
		})
	}
}

func TestSelfTargetBeforeConsecutive(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)
	f.play("e2e4")

	out := f.exec("Chess: Move E7 to E7", "@alice")
	if out.Code != core.ErrSelfTargetingMove {
		t.Errorf("code = %s, want %s", out.Code, core.ErrSelfTargetingMove)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)
	f.play("e2e4", "d7d5", "e4d5", "c7c6", "d5c6", "g8f6", "c6b7", "b8d7")

	out := f.move("b7a8", "@alice")
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Move != "b7a8q" || !out.Capture {
		t.Errorf("move = %s capture = %v", out.Move, out.Capture)
	}
	if !hasLabel(out, f.s.Labels.Capture) || !hasLabel(out, f.s.Labels.White) {
		t.Errorf("labels = %v", out.Labels)
	}
	lines, _ := f.store.HistoryLines()
	if lines[len(lines)-1] != "b7a8q: @alice" {
		t.Errorf("history tail = %q", lines[len(lines)-1])
	}
	if p := out.Match.FEN(); !strings.HasPrefix(p, "Q") {
		t.Errorf("a8 holds no queen: %s", p)
	}
}

func TestCheckmateArchives(t *testing.T) {
	f := newFixture(t)
	f.exec("Chess: Start new game", owner)
	out := f.play("e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")

	if out.GameOver == nil {
		t.Fatal("no game over")
	}
	g := out.GameOver
	if g.State != core.StateWhiteWins || g.Result != core.ResultWhiteWins {
		t.Errorf("state = %v result = %s", g.State, g.Result)
	}
	if g.NumMoves != 7 {
		t.Errorf("num moves = %d", g.NumMoves)
	}
	if strings.Join(g.Players, ",") != "@owner,@alice,@bob" {
		t.Errorf("players = %v", g.Players)
	}
	if len(g.History) != 8 {
		t.Errorf("history = %d lines", len(g.History))
	}

	for _, label := range []string{f.s.Labels.Capture, f.s.Labels.White, f.s.Labels.Winner} {
		if !hasLabel(out, label) {
			t.Errorf("missing label %q in %v", label, out.Labels)
		}
	}
	if len(out.Comments) != 2 {
		t.Fatalf("comments = %q", out.Comments)
	}
	want := "The game has ended: White wins! 3 players (@owner, @alice, @bob) played 7 moves. Thanks for playing!"
	if out.Comments[1] != want {
		t.Errorf("game over comment = %q", out.Comments[1])
	}

	if ok, _ := f.store.MatchExists(); ok {
		t.Error("match artifact not archived")
	}
	if ok, _ := f.store.HistoryExists(); ok {
		t.Error("history log not deleted")
	}
	if filepath.Base(g.ArchivePath) != "game-20240504-103000.pgn" {
		t.Errorf("archive = %s", g.ArchivePath)
	}
	data, err := os.ReadFile(g.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `[Result "1-0"]`) {
		t.Errorf("archive lacks result header:\n%s", data)
	}

	l, _ := f.store.Leaderboard()
	if l.Count("@alice") != 4 || l.Count("@bob") != 3 {
		t.Errorf("leaderboard = %d %d", l.Count("@alice"), l.Count("@bob"))
	}

	next := f.move("e2e4", "@carol")
	if next.Code != core.ErrNoActiveMatch {
		t.Errorf("after archival code = %s", next.Code)
	}
}

func TestArchiveIndexed(t *testing.T) {
	f := newFixture(t)
	index, err := storage.NewIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer index.Close()
	if err := index.InitDB(); err != nil {
		t.Fatal(err)
	}
	f.proc.index = index

	f.exec("Chess: Start new game", owner)
	f.play("f2f3", "e7e5", "g2g4", "d8h4")

	records, err := index.QueryArchives("@bob", "black wins")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].NumMoves != 4 || records[0].Termination != "checkmate" {
		t.Errorf("records = %+v", records)
	}
}

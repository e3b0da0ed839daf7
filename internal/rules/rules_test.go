package rules

import (
	"strings"
	"testing"

	"github.com/corentings/chess/v2"

	"chessbot/internal/core"
)

func newMatch(t *testing.T, moves ...string) *Match {
	t.Helper()
	m := New(Headers{Event: "test", Site: "https://github.com/o/r", Date: "2024.01.01", Round: "1"})
	for _, mv := range moves {
		if err := m.Apply(mv); err != nil {
			t.Fatalf("Apply(%s): %v", mv, err)
		}
	}
	return m
}

func TestNewMatch(t *testing.T) {
	m := newMatch(t)
	if m.Turn() != core.ColorWhite {
		t.Errorf("turn = %v, want white", m.Turn())
	}
	if got := m.Header("Result"); got != core.ResultOngoing {
		t.Errorf("Result header = %q, want %q", got, core.ResultOngoing)
	}
	if got := m.Header("Round"); got != "1" {
		t.Errorf("Round header = %q", got)
	}
	if _, over := m.Terminal(); over {
		t.Error("new match is terminal")
	}
}

func TestIsLegal(t *testing.T) {
	m := newMatch(t)
	tests := []struct {
		move string
		want bool
	}{
		{"e2e4", true},
		{"g1f3", true},
		{"e2e5", false},
		{"e7e5", false},
		{"e2", false},
		{"e2e4e5", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.IsLegal(tt.move); got != tt.want {
			t.Errorf("IsLegal(%q) = %v, want %v", tt.move, got, tt.want)
		}
	}
}

func TestCaptureAndClone(t *testing.T) {
	m := newMatch(t, "e2e4", "d7d5")
	if !m.IsCapture("e4d5") {
		t.Error("e4d5 should capture")
	}
	if m.IsCapture("e4e5") {
		t.Error("e4e5 should not capture")
	}

	next, err := m.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if err := next.Apply("e4d5"); err != nil {
		t.Fatal(err)
	}
	if len(m.Moves()) != 2 {
		t.Errorf("original match has %d moves after the clone moved", len(m.Moves()))
	}
	if len(next.Moves()) != 3 {
		t.Errorf("clone moves = %d, want 3", len(next.Moves()))
	}
	if strings.Contains(m.Encode(), "e4d5") || strings.Contains(m.Encode(), "exd5") {
		t.Errorf("original PGN picked up the clone's move:\n%s", m.Encode())
	}
	if err := m.Apply("g1f3"); err != nil {
		t.Fatalf("original Apply after clone: %v", err)
	}
	if got := next.Moves(); got[len(got)-1] != "e4d5" {
		t.Errorf("clone last move = %q, want e4d5", got[len(got)-1])
	}
}

func TestCheckmate(t *testing.T) {
	m := newMatch(t, "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	term, over := m.Terminal()
	if !over || term != Checkmate {
		t.Fatalf("Terminal() = %v, %v; want checkmate", term, over)
	}
	if m.Result() != core.ResultWhiteWins {
		t.Errorf("Result() = %q", m.Result())
	}
	if m.Header("Result") != core.ResultWhiteWins {
		t.Errorf("Result header = %q", m.Header("Result"))
	}
	if !m.InCheck() {
		t.Error("mating move should carry check")
	}
}

func TestEncodeDecode(t *testing.T) {
	m := newMatch(t, "e2e4", "e7e5", "g1f3")
	decoded, err := Decode(strings.NewReader(m.Encode()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.FEN() != m.FEN() {
		t.Errorf("FEN = %q, want %q", decoded.FEN(), m.FEN())
	}
	if decoded.Header("Event") != "test" {
		t.Errorf("Event header = %q", decoded.Header("Event"))
	}
	if decoded.Turn() != core.ColorBlack {
		t.Errorf("turn = %v, want black", decoded.Turn())
	}
}

func TestLegalMovesGroupsPromotions(t *testing.T) {
	m := newMatch(t, "e2e4", "d7d5", "e4d5", "c7c6", "d5c6", "g8f6", "c6b7", "b8d7")
	legal := m.LegalMoves()
	dests := legal["b7"]
	want := []string{"a8", "b8", "c8"}
	if strings.Join(dests, ",") != strings.Join(want, ",") {
		t.Errorf("b7 destinations = %v, want %v", dests, want)
	}
	if m.IsLegal("b7a8") {
		t.Error("promotion without a piece should not be legal")
	}
	if !m.IsLegal("b7a8q") || !m.IsLegal("b7a8n") {
		t.Error("promotions should be legal")
	}
}

func TestValid(t *testing.T) {
	if !newMatch(t, "e2e4").Valid() {
		t.Error("ordinary position reported invalid")
	}
}

func TestRepetitionIsClaimed(t *testing.T) {
	m := newMatch(t,
		"g1f3", "g8f6", "f3g1", "f6g8",
		"g1f3", "g8f6", "f3g1", "f6g8",
	)
	term, over := m.Terminal()
	if !over || term != Repetition {
		t.Fatalf("Terminal() = %v, %v; want repetition", term, over)
	}
	if m.Result() != core.ResultDraw {
		t.Errorf("Result() = %q", m.Result())
	}
}

// Each move goes through a full decode, apply, encode cycle, the way the
// processor handles one issue at a time.
func TestDecodeApplyRoundTrip(t *testing.T) {
	line := []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5", "a7a6", "b5a4", "g8f6"}
	pgn := newMatch(t).Encode()
	for i, mv := range line {
		m, err := Decode(strings.NewReader(pgn))
		if err != nil {
			t.Fatalf("move %d: Decode: %v", i, err)
		}
		next, err := m.Clone()
		if err != nil {
			t.Fatalf("move %d: Clone: %v", i, err)
		}
		if err := next.Apply(mv); err != nil {
			t.Fatalf("move %d: Apply(%s): %v", i, mv, err)
		}
		pgn = next.Encode()
		if strings.Contains(pgn, "(") {
			t.Fatalf("move %d: PGN contains a variation:\n%s", i, pgn)
		}
	}

	final, err := Decode(strings.NewReader(pgn))
	if err != nil {
		t.Fatalf("final Decode: %v", err)
	}
	if got := final.Moves(); strings.Join(got, " ") != strings.Join(line, " ") {
		t.Errorf("moves = %v, want %v", got, line)
	}
	direct := newMatch(t, line...)
	if final.FEN() != direct.FEN() {
		t.Errorf("FEN = %q, want %q", final.FEN(), direct.FEN())
	}
	if final.Header("Event") != "test" || final.Header("Result") != core.ResultOngoing {
		t.Errorf("headers lost: Event=%q Result=%q", final.Header("Event"), final.Header("Result"))
	}
}

func TestDecodeKeepsFinishedResult(t *testing.T) {
	mate := newMatch(t, "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	m, err := Decode(strings.NewReader(mate.Encode()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if term, over := m.Terminal(); !over || term != Checkmate {
		t.Errorf("Terminal() = %v, %v; want checkmate", term, over)
	}
	if m.Result() != core.ResultWhiteWins {
		t.Errorf("Result() = %q", m.Result())
	}
}

func fromFEN(t *testing.T, fen string) *Match {
	t.Helper()
	opt, err := chess.FEN(fen)
	if err != nil {
		t.Fatalf("FEN(%q): %v", fen, err)
	}
	return &Match{game: chess.NewGame(opt)}
}

func TestFiftyMoveRuleIsClaimed(t *testing.T) {
	m := fromFEN(t, "8/8/4k3/8/8/4K3/8/R7 w - - 99 80")
	if _, over := m.Terminal(); over {
		t.Fatal("position is terminal before the hundredth quiet half-move")
	}
	if err := m.Apply("a1a2"); err != nil {
		t.Fatal(err)
	}
	term, over := m.Terminal()
	if !over || term != MoveLimit {
		t.Fatalf("Terminal() = %v, %v; want move limit", term, over)
	}
	if m.Header("Result") != core.ResultDraw {
		t.Errorf("Result header = %q, want %q", m.Header("Result"), core.ResultDraw)
	}
}

// Package rules adapts the chess rules library to the operations the match
// pipeline needs: legality, application, validity, capture and terminal
// detection, and PGN round-tripping.
package rules

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/corentings/chess/v2"

	"chessbot/internal/board"
	"chessbot/internal/core"
)

// Termination names the condition that ended a match
type Termination int

const (
	NotTerminal Termination = iota
	Checkmate
	Stalemate
	InsufficientMaterial
	Repetition
	MoveLimit
	OtherTermination
)

func (t Termination) String() string {
	switch t {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case InsufficientMaterial:
		return "insufficient material"
	case Repetition:
		return "repetition"
	case MoveLimit:
		return "move limit"
	case OtherTermination:
		return "other"
	default:
		return "none"
	}
}

// Match is one game record: headers, main line and the current position
type Match struct {
	game *chess.Game
}

// Headers for a new match artifact
type Headers struct {
	Event string
	Site  string
	Date  string
	Round string
}

// New creates an empty match in the standard starting position
func New(h Headers) *Match {
	g := chess.NewGame()
	g.AddTagPair("Event", h.Event)
	g.AddTagPair("Site", h.Site)
	g.AddTagPair("Date", h.Date)
	g.AddTagPair("Round", h.Round)
	g.AddTagPair("Result", core.ResultOngoing)
	return &Match{game: g}
}

// headerKeys are the tag pairs carried over when a match is rebuilt
var headerKeys = []string{"Event", "Site", "Date", "Round", "White", "Black", "Result"}

// Decode reads a match from PGN. The main line is replayed into a fresh
// game so that new moves extend it instead of branching from move one.
func Decode(r io.Reader) (*Match, error) {
	opt, err := chess.PGN(r)
	if err != nil {
		return nil, fmt.Errorf("decode pgn: %w", err)
	}
	parsed := chess.NewGame(opt)
	m, err := replay(parsed, mainLine(parsed))
	if err != nil {
		return nil, fmt.Errorf("decode pgn: %w", err)
	}
	return m, nil
}

// replay builds a match with the headers of src and the given UCI moves
func replay(src *chess.Game, moves []string) (*Match, error) {
	g := chess.NewGame()
	for _, key := range headerKeys {
		if v := src.GetTagPair(key); v != "" {
			g.AddTagPair(key, v)
		}
	}
	for _, mv := range moves {
		if err := g.PushNotationMove(mv, chess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %s: %w", mv, err)
		}
	}
	m := &Match{game: g}
	if err := m.claimDraws(); err != nil {
		return nil, err
	}
	return m, nil
}

func mainLine(g *chess.Game) []string {
	moves := g.Moves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

// Encode returns the PGN form of the match
func (m *Match) Encode() string {
	return m.game.String()
}

// Header returns a PGN tag value, empty when absent
func (m *Match) Header(key string) string {
	return m.game.GetTagPair(key)
}

// FEN of the current position
func (m *Match) FEN() string {
	return m.game.FEN()
}

// Moves returns the main line in UCI notation
func (m *Match) Moves() []string {
	return mainLine(m.game)
}

// Turn returns the side to move
func (m *Match) Turn() core.Color {
	if m.game.Position().Turn() == chess.Black {
		return core.ColorBlack
	}
	return core.ColorWhite
}

// IsLegal reports whether a UCI move is legal in the current position
func (m *Match) IsLegal(move string) bool {
	_, ok := m.decode(move)
	return ok
}

// IsCapture reports whether the destination square of a UCI move is
// occupied before the move is made.
func (m *Match) IsCapture(move string) bool {
	if len(move) < 4 {
		return false
	}
	b, err := board.ParseFEN(m.FEN())
	if err != nil {
		return false
	}
	return b.GetPieceAt(move[2:4]) != 0
}

// Apply plays a UCI move and refreshes the Result header. A threefold
// repetition or a fifty-move position is claimed as a draw immediately.
func (m *Match) Apply(move string) error {
	mv, ok := m.decode(move)
	if !ok {
		return fmt.Errorf("move %q is not legal in %s", move, m.FEN())
	}
	if err := m.game.Move(mv, nil); err != nil {
		return fmt.Errorf("apply %s: %w", move, err)
	}
	if err := m.claimDraws(); err != nil {
		return err
	}
	m.game.AddTagPair("Result", m.Result())
	return nil
}

func (m *Match) claimDraws() error {
	if m.game.Outcome() != chess.NoOutcome {
		return nil
	}
	for _, method := range m.game.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			if err := m.game.Draw(method); err != nil {
				return fmt.Errorf("claim draw: %w", err)
			}
			return nil
		}
	}
	return nil
}

// Valid reports whether the current position is structurally sound
func (m *Match) Valid() bool {
	b, err := board.ParseFEN(m.FEN())
	if err != nil {
		return false
	}
	return b.IsValid()
}

// Clone returns an independent copy, used to try a move before committing
func (m *Match) Clone() (*Match, error) {
	c, err := replay(m.game, m.Moves())
	if err != nil {
		return nil, fmt.Errorf("clone match: %w", err)
	}
	return c, nil
}

// Terminal reports whether the match has ended and why
func (m *Match) Terminal() (Termination, bool) {
	if m.game.Outcome() == chess.NoOutcome {
		return NotTerminal, false
	}
	switch m.game.Method() {
	case chess.Checkmate:
		return Checkmate, true
	case chess.Stalemate:
		return Stalemate, true
	case chess.InsufficientMaterial:
		return InsufficientMaterial, true
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return Repetition, true
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return MoveLimit, true
	default:
		return OtherTermination, true
	}
}

// Result returns the PGN result string
func (m *Match) Result() string {
	return m.game.Outcome().String()
}

// InCheck reports whether the last move gave check
func (m *Match) InCheck() bool {
	moves := m.game.Moves()
	if len(moves) == 0 {
		return false
	}
	return moves[len(moves)-1].HasTag(chess.Check)
}

// LegalMoves groups legal destinations by source square, both sorted
func (m *Match) LegalMoves() map[string][]string {
	out := make(map[string][]string)
	seen := make(map[string]bool)
	for _, mv := range m.game.ValidMoves() {
		src, dst := mv.S1().String(), mv.S2().String()
		if seen[src+dst] {
			continue // promotions yield one entry per piece
		}
		seen[src+dst] = true
		out[src] = append(out[src], dst)
	}
	for src := range out {
		sort.Strings(out[src])
	}
	return out
}

// Board returns a square view of the current position
func (m *Match) Board() (*board.Board, error) {
	return board.ParseFEN(m.FEN())
}

func (m *Match) decode(move string) (*chess.Move, bool) {
	move = strings.ToLower(strings.TrimSpace(move))
	if len(move) < 4 || len(move) > 5 {
		return nil, false
	}
	pos := m.game.Position()
	mv, err := chess.UCINotation{}.Decode(pos, move)
	if err != nil || mv == nil {
		return nil, false
	}
	for _, valid := range m.game.ValidMoves() {
		if valid.S1() == mv.S1() && valid.S2() == mv.S2() && valid.Promo() == mv.Promo() {
			return mv, true
		}
	}
	return nil, false
}

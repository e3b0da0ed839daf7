package board

import (
	"fmt"
	"strings"

	"chessbot/internal/core"
)

const (
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// Board is a read-only view of a FEN position. squares[0] is rank 8.
type Board struct {
	squares   [8][8]byte
	turn      core.Color
	castling  string
	enPassant string
	halfmove  int
	fullmove  int
}

func ParseFEN(fen string) (*Board, error) {
	parts := strings.Fields(fen)
	if len(parts) != 6 {
		return nil, fmt.Errorf("invalid FEN: expected 6 parts, got %d", len(parts))
	}

	b := &Board{}

	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("invalid FEN: expected 8 ranks")
	}

	for r := 0; r < 8; r++ {
		file := 0
		for _, ch := range ranks[r] {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
			} else {
				if file >= 8 {
					return nil, fmt.Errorf("invalid FEN: too many pieces in rank %d", r+1)
				}
				if !strings.ContainsRune("pnbrqkPNBRQK", ch) {
					return nil, fmt.Errorf("invalid FEN: unknown piece %q", ch)
				}
				b.squares[r][file] = byte(ch)
				file++
			}
		}
		if file != 8 {
			return nil, fmt.Errorf("invalid FEN: rank %d has %d files", r+1, file)
		}
	}

	switch parts[1] {
	case "w":
		b.turn = core.ColorWhite
	case "b":
		b.turn = core.ColorBlack
	default:
		return nil, fmt.Errorf("invalid FEN: turn must be 'w' or 'b'")
	}
	b.castling = parts[2]
	b.enPassant = parts[3]

	if _, err := fmt.Sscanf(parts[4], "%d", &b.halfmove); err != nil {
		return nil, fmt.Errorf("invalid FEN: halfmove counter")
	}
	if _, err := fmt.Sscanf(parts[5], "%d", &b.fullmove); err != nil {
		return nil, fmt.Errorf("invalid FEN: fullmove counter")
	}

	return b, nil
}

// ToASCII renders the board with rank 8 on top, file letters above and
// below, and '.' for empty squares.
func (b *Board) ToASCII() string {
	const files = "  a b c d e f g h"
	var sb strings.Builder
	sb.WriteString(files + "\n")
	for r, row := range b.Rows() {
		fmt.Fprintf(&sb, "%d ", 8-r)
		for _, sq := range row {
			sb.WriteByte(sq)
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, " %d\n", 8-r)
	}
	sb.WriteString(files)
	return sb.String()
}

func (b *Board) Turn() core.Color {
	return b.turn
}

// GetPieceAt returns the FEN letter on a square such as "e4", or 0 when the
// square is empty or malformed.
func (b *Board) GetPieceAt(square string) byte {
	if len(square) != 2 {
		return 0
	}
	if square[0] < 'a' || square[0] > 'h' || square[1] < '1' || square[1] > '8' {
		return 0
	}
	file := square[0] - 'a'
	rank := '8' - square[1]
	return b.squares[rank][file]
}

// Rows returns the board rank by rank from rank 8 down to rank 1, with '.'
// for empty squares.
func (b *Board) Rows() [8][8]byte {
	var rows [8][8]byte
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if p := b.squares[r][f]; p != 0 {
				rows[r][f] = p
			} else {
				rows[r][f] = '.'
			}
		}
	}
	return rows
}

// IsValid reports whether the position is structurally sound: one king per
// side and no pawn on the first or last rank.
func (b *Board) IsValid() bool {
	whiteKings, blackKings := 0, 0
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			switch b.squares[r][f] {
			case 'K':
				whiteKings++
			case 'k':
				blackKings++
			case 'P', 'p':
				if r == 0 || r == 7 {
					return false
				}
			}
		}
	}
	return whiteKings == 1 && blackKings == 1
}

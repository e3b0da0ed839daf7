package core

import "strings"

// State is the outcome category of a finished match
type State int

const (
	StateOngoing State = iota
	StateWhiteWins
	StateBlackWins
	StateDraw
	StateUnknown
)

// PGN result strings
const (
	ResultWhiteWins = "1-0"
	ResultBlackWins = "0-1"
	ResultDraw      = "1/2-1/2"
	ResultOngoing   = "*"
)

func (s State) String() string {
	switch s {
	case StateWhiteWins:
		return "white wins"
	case StateBlackWins:
		return "black wins"
	case StateDraw:
		return "draw"
	case StateOngoing:
		return "ongoing"
	default:
		return "unknown"
	}
}

// StateFromResult maps an engine result string to an outcome category.
// Anything outside the three decided results maps to StateUnknown.
func StateFromResult(result string) State {
	switch strings.TrimSpace(result) {
	case ResultDraw:
		return StateDraw
	case ResultWhiteWins:
		return StateWhiteWins
	case ResultBlackWins:
		return StateBlackWins
	default:
		return StateUnknown
	}
}

type Color byte

const (
	ColorWhite Color = 'w'
	ColorBlack Color = 'b'
)

func (c Color) String() string {
	switch c {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "-"
	}
}

// CommandType defines the kind of command carried by an issue title
type CommandType int

const (
	CmdUnknown CommandType = iota
	CmdStartNewGame
	CmdMove
)

func (t CommandType) String() string {
	switch t {
	case CmdStartNewGame:
		return "new_game"
	case CmdMove:
		return "move"
	default:
		return "unknown"
	}
}

// Command is the parsed form of an issue title. Source and Dest are lower
// case board coordinates; both are empty when a move title did not match the
// expected phrase.
type Command struct {
	Type   CommandType
	Source string
	Dest   string
}

// Move returns the UCI form of a move command (source followed by dest)
func (c Command) Move() string {
	return c.Source + c.Dest
}

package processor

import (
	"regexp"
	"strings"

	"chessbot/internal/core"
)

const (
	newGameTitle = "chess: start new game"
	movePrefix   = "chess: move"
)

var movePattern = regexp.MustCompile(`(?i)Chess: Move ([A-H][1-8]) to ([A-H][1-8])`)

// ParseTitle classifies an issue title. A title naming a move whose
// coordinates do not fit the phrase yields a move command with empty squares;
// the pipeline rejects it as an illegal move.
func ParseTitle(title string) core.Command {
	lower := strings.ToLower(title)

	if lower == newGameTitle {
		return core.Command{Type: core.CmdStartNewGame}
	}

	if strings.Contains(lower, movePrefix) {
		cmd := core.Command{Type: core.CmdMove}
		if m := movePattern.FindStringSubmatch(title); m != nil {
			cmd.Source = strings.ToLower(m[1])
			cmd.Dest = strings.ToLower(m[2])
		}
		return cmd
	}

	return core.Command{Type: core.CmdUnknown}
}

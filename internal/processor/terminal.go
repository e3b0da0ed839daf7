package processor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"chessbot/internal/config"
	"chessbot/internal/core"
	"chessbot/internal/rules"
	"chessbot/internal/storage"
)

// participantPattern extracts the trailing handle of a history line
var participantPattern = regexp.MustCompile(`(?i).*: (@[a-z\d](?:-?[a-z\d]){0,38})`)

// Participants returns the distinct identities named in history lines, in
// order of first appearance
func Participants(lines []string) []string {
	seen := make(map[string]bool)
	var players []string
	for _, line := range lines {
		m := participantPattern.FindStringSubmatch(line)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		players = append(players, m[1])
	}
	return players
}

// finish archives the match when m is terminal and extends out with the
// game-over comment and label
func (p *Processor) finish(out *Outcome, m *rules.Match) error {
	termination, ok := m.Terminal()
	if !ok {
		return nil
	}

	result := m.Result()
	state := core.StateFromResult(result)

	lines, err := p.store.HistoryLines()
	if err != nil {
		return err
	}
	players := Participants(lines)
	numMoves := len(lines) - 1
	if numMoves < 0 {
		numMoves = 0
	}

	if state == core.StateDraw {
		out.Labels = append(out.Labels, p.settings.Labels.Draw)
	} else {
		out.Labels = append(out.Labels, p.settings.Labels.Winner)
	}
	out.Comments = append(out.Comments, config.Format(p.settings.Comments.GameOver,
		"outcome", p.outcomePhrase(state),
		"players", strings.Join(players, ", "),
		"num_moves", strconv.Itoa(numMoves),
		"num_players", strconv.Itoa(len(players)),
	))

	at := p.now()
	path, err := p.store.ArchiveMatch(at)
	if err != nil {
		return err
	}
	if err := p.store.DeleteHistory(); err != nil {
		return err
	}

	out.GameOver = &GameOver{
		State:       state,
		Result:      result,
		Termination: termination,
		Players:     players,
		NumMoves:    numMoves,
		ArchivePath: path,
		History:     lines,
	}
	p.logger.Info("match archived", "path", path, "outcome", state.String(),
		"termination", termination.String(), "players", len(players), "moves", numMoves)

	if p.index != nil {
		record := storage.ArchiveRecord{
			ArchiveID:   uuid.NewString(),
			Path:        path,
			Result:      result,
			Outcome:     state.String(),
			Termination: termination.String(),
			NumMoves:    numMoves,
			Players:     players,
			ArchivedAt:  at,
		}
		if err := p.index.RecordArchive(record); err != nil {
			p.logger.Warn("archive index not updated", "path", path, "error", err)
		}
	}
	return nil
}

func (p *Processor) outcomePhrase(state core.State) string {
	switch state {
	case core.StateWhiteWins:
		return p.settings.Outcomes.WhiteWins
	case core.StateBlackWins:
		return p.settings.Outcomes.BlackWins
	case core.StateDraw:
		return p.settings.Outcomes.Draw
	default:
		return p.settings.Outcomes.Unknown
	}
}

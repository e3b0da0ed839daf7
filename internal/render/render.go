// Package render produces the markdown sections of the repository README
// and splices them between marker comments.
package render

import (
	"fmt"
	"sort"
	"strings"

	"chessbot/internal/board"
	"chessbot/internal/config"
	"chessbot/internal/core"
	"chessbot/internal/rules"
	"chessbot/internal/storage"
)

// View is everything one README refresh needs
type View struct {
	Match      *rules.Match
	Repository string
	// History is the move-history log in write order
	History []string
	Top     []storage.LeaderboardEntry
}

// Readme refreshes every marked section of doc. Sections whose markers are
// missing are left alone.
func Readme(doc string, s *config.Settings, v View) (string, error) {
	if v.Match == nil {
		return doc, nil
	}
	b, err := v.Match.Board()
	if err != nil {
		return "", fmt.Errorf("render board: %w", err)
	}

	doc = ReplaceBetween(doc, s.Markers.Board, Board(b, s.Images))
	doc = ReplaceBetween(doc, s.Markers.Moves, MovesList(v.Match, s, v.Repository))
	doc = ReplaceBetween(doc, s.Markers.Turn, v.Match.Turn().String())
	doc = ReplaceBetween(doc, s.Markers.LastMoves, LastMoves(v.History, s.Misc.MaxLastMoves))
	doc = ReplaceBetween(doc, s.Markers.TopMoves, TopMoves(v.Top))
	return doc, nil
}

// ReplaceBetween swaps the text between the first begin marker and the
// following end marker
func ReplaceBetween(doc string, m config.Marker, content string) string {
	if m.Begin == "" || m.End == "" {
		return doc
	}
	head, rest, ok := strings.Cut(doc, m.Begin)
	if !ok {
		return doc
	}
	_, tail, ok := strings.Cut(rest, m.End)
	if !ok {
		return doc
	}
	return head + m.Begin + content + m.End + tail
}

// Board renders the position as an image table seen from the side to move
func Board(b *board.Board, images map[string]string) string {
	flip := b.Turn() == core.ColorBlack
	files := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	if flip {
		files = []string{"H", "G", "F", "E", "D", "C", "B", "A"}
	}

	var sb strings.Builder
	sb.WriteString("|   | " + strings.Join(files, " | ") + " |   |\n")
	sb.WriteString("|---|:-:|:-:|:-:|:-:|:-:|:-:|:-:|:-:|:-:|\n")

	rows := b.Rows()
	for i := 0; i < 8; i++ {
		r := i
		if flip {
			r = 7 - i
		}
		rank := 8 - r
		fmt.Fprintf(&sb, "| **%d** | ", rank)
		for j := 0; j < 8; j++ {
			f := j
			if flip {
				f = 7 - j
			}
			src, ok := images[string(rows[r][f])]
			if !ok {
				src = "???"
			}
			fmt.Fprintf(&sb, "<img src=\"%s\" width=50px> | ", src)
		}
		fmt.Fprintf(&sb, "**%d** |\n", rank)
	}

	sb.WriteString("|   | **" + strings.Join(files, "** | **") + "** |   |\n")
	return sb.String()
}

// MovesList renders the legal moves as issue links grouped by source
// square, or a new-game link once the match is over
func MovesList(m *rules.Match, s *config.Settings, repo string) string {
	if _, over := m.Terminal(); over {
		return fmt.Sprintf("**GAME IS OVER!** [Click here](%s) to start a new game :D\n", s.NewGameLink(repo))
	}

	var sb strings.Builder
	if m.InCheck() {
		sb.WriteString("**CHECK!** Choose your move wisely!\n")
	}
	sb.WriteString("|  FROM  | TO (Just click a link!) |\n")
	sb.WriteString("| :----: | :---------------------- |\n")

	legal := m.LegalMoves()
	sources := make([]string, 0, len(legal))
	for src := range legal {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		links := make([]string, 0, len(legal[src]))
		for _, dst := range legal[src] {
			links = append(links, fmt.Sprintf("[%s](%s)", strings.ToUpper(dst), s.MoveLink(repo, src, dst)))
		}
		fmt.Fprintf(&sb, "| **%s** | %s |\n", strings.ToUpper(src), strings.Join(links, ", "))
	}
	return sb.String()
}

// LastMoves renders up to limit history entries, newest first
func LastMoves(history []string, limit int) string {
	var sb strings.Builder
	sb.WriteString("\n| Move | Author |\n")
	sb.WriteString("| :--: | :----- |\n")

	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		if limit > 0 && count >= limit {
			break
		}
		e, ok := storage.ParseHistoryLine(history[i])
		if !ok {
			continue
		}
		count++

		move := "`" + e.Move + "`"
		if !e.IsStart() && len(e.Move) >= 4 {
			move = fmt.Sprintf("`%s` to `%s`", strings.ToUpper(e.Move[:2]), strings.ToUpper(e.Move[2:4]))
		}
		fmt.Fprintf(&sb, "| %s | %s |\n", move, profileLink(e.Identity))
	}
	sb.WriteString("\n")
	return sb.String()
}

// TopMoves renders the leaderboard table
func TopMoves(entries []storage.LeaderboardEntry) string {
	var sb strings.Builder
	sb.WriteString("\n| Total moves |  User  |\n")
	sb.WriteString("| :---------: | :----- |\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "| %d | %s |\n", e.Count, profileLink(e.Identity))
	}
	sb.WriteString("\n")
	return sb.String()
}

func profileLink(identity string) string {
	return fmt.Sprintf("[%s](https://github.com/%s)", identity, strings.TrimPrefix(identity, "@"))
}
